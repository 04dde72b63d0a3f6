//go:build !windows

package svc

import log "github.com/sirupsen/logrus"

func (m *systemManager) applyServiceProperties() error {
	log.Debugf("service property tuning is a no-op on this platform")
	return nil
}

func (m *systemManager) SetDelayedStart() error {
	log.Debugf("delayed start is a no-op on this platform")
	return nil
}
