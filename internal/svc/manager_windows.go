package svc

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/mgr"
)

type preshutdownInfo struct {
	PreshutdownTimeout uint32 // milliseconds
}

// applyServiceProperties tunes the freshly created service: restart on
// failure after restartDelay, and a graceful-stop window before the OS kills
// the process on shutdown.
func (m *systemManager) applyServiceProperties() error {
	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect service manager: %w", err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(m.name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", m.name, err)
	}
	defer s.Close()

	actions := []mgr.RecoveryAction{
		{Type: mgr.ServiceRestart, Delay: restartDelay},
	}
	if err := s.SetRecoveryActions(actions, uint32((24 * time.Hour).Seconds())); err != nil {
		return fmt.Errorf("set recovery actions: %w", err)
	}

	info := preshutdownInfo{PreshutdownTimeout: uint32(stopTimeout.Milliseconds())}
	err = windows.ChangeServiceConfig2(
		windows.Handle(s.Handle),
		windows.SERVICE_CONFIG_PRESHUTDOWN_INFO,
		(*byte)(unsafe.Pointer(&info)),
	)
	if err != nil {
		return fmt.Errorf("set preshutdown timeout: %w", err)
	}
	return nil
}

// SetDelayedStart flips the service to delayed-automatic start.
func (m *systemManager) SetDelayedStart() error {
	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect service manager: %w", err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(m.name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", m.name, err)
	}
	defer s.Close()

	cfg, err := s.Config()
	if err != nil {
		return fmt.Errorf("query service config: %w", err)
	}
	cfg.DelayedAutoStart = true
	cfg.StartType = mgr.StartAutomatic
	if err := s.UpdateConfig(cfg); err != nil {
		return fmt.Errorf("update service config: %w", err)
	}
	return nil
}
