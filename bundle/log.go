package bundle

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "bundle")
