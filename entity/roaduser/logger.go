package roaduser

import "github.com/sirupsen/logrus"

// log 交通参与者模块的日志记录器
var log = logrus.WithField("module", "roaduser")
