package routegen

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "routegen")
