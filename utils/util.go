package utils

// 找出key对应的数据，按keys的顺序返回。
// 如果不存在则将失败的key记录到失败列表中。
func Find[K comparable, T any](dataMap map[K]T, keys []K) (okData []T, failedKeys []K) {
	okData = make([]T, 0, len(keys))
	for _, k := range keys {
		if d, ok := dataMap[k]; ok {
			okData = append(okData, d)
		} else {
			failedKeys = append(failedKeys, k)
		}
	}
	return
}
