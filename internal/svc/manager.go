// Package svc installs and drives the salt-minion Windows service.
package svc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

const (
	// ServiceName is the SCM name of the agent service.
	ServiceName = "salt-minion"

	serviceDisplayName = "salt-minion"
	serviceDescription = "Salt Minion from saltproject.io. A software agent used to communicate with the Salt Master."

	// restartDelay is how long the SCM waits before restarting a failed
	// service.
	restartDelay = 15 * time.Second
	// stopTimeout is the graceful-stop window granted on shutdown.
	stopTimeout = 10 * time.Second

	removalPollInterval = 500 * time.Millisecond
	removalPollAttempts = 10
)

// ErrServiceStillPresent is returned when the service survives the bounded
// removal poll; the caller must abort rather than leave an orphaned service
// behind.
var ErrServiceStillPresent = errors.New("service still present after removal")

// State is the coarse service status the installer cares about.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StateStopped
	StateNotInstalled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateNotInstalled:
		return "not installed"
	default:
		return "unknown"
	}
}

// Manager installs, configures and removes the agent service.
type Manager interface {
	// Register creates the service bound to binPath with the config root
	// argument. Create failure is fatal to the run; cosmetic property steps
	// afterwards are logged and ignored.
	Register(binPath, rootDir string) error
	// SetDelayedStart switches the service to delayed-automatic start.
	SetDelayedStart() error
	Start() error
	Stop() error
	Status() (State, error)
	// Unregister stops and removes the service, polling until the control
	// manager confirms it is gone.
	Unregister(ctx context.Context) error
}

// systemManager is the production Manager backed by the OS service control
// manager. open is a field so tests can substitute the SCM handle.
type systemManager struct {
	name         string
	open         func(cfg *service.Config) (service.Service, error)
	pollInterval time.Duration
	pollAttempts uint64
}

func NewManager() Manager {
	m := &systemManager{
		name:         ServiceName,
		pollInterval: removalPollInterval,
		pollAttempts: removalPollAttempts,
	}
	m.open = func(cfg *service.Config) (service.Service, error) {
		if cfg == nil {
			cfg = &service.Config{Name: m.name}
		}
		return service.New(program{}, cfg)
	}
	return m
}

// program satisfies the service runtime interface. The setup binary never
// runs as the service itself, it only registers the agent binary.
type program struct{}

func (program) Start(service.Service) error { return nil }
func (program) Stop(service.Service) error  { return nil }

func (m *systemManager) Register(binPath, rootDir string) error {
	cfg := &service.Config{
		Name:        m.name,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Executable:  binPath,
		Arguments:   []string{"-c", filepath.Join(rootDir, "conf")},
		Option:      service.KeyValue{"OnFailure": "restart"},
	}

	s, err := m.open(cfg)
	if err != nil {
		return fmt.Errorf("create service config: %w", err)
	}

	if st, err := m.Status(); err == nil && st != StateNotInstalled {
		log.Infof("service %s already registered, replacing it", m.name)
		if err := s.Stop(); err != nil {
			log.Warnf("unable to stop service %s: %v", m.name, err)
		}
		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("remove previous service registration: %w", err)
		}
		// the control manager keeps a deleted service in delete-pending
		// state while handles on it remain open; installing over it fails
		if err := waitServiceGone(context.Background(), m.Status, m.pollInterval, m.pollAttempts); err != nil {
			return fmt.Errorf("replace previous service registration: %w", err)
		}
	}

	if err := s.Install(); err != nil {
		return fmt.Errorf("install service %s: %w", m.name, err)
	}
	log.Infof("registered service %s for %s", m.name, binPath)

	// post-create property tuning is cosmetic, log and carry on
	if err := m.applyServiceProperties(); err != nil {
		log.Warnf("unable to apply service properties: %v", err)
	}
	return nil
}

func (m *systemManager) Start() error {
	s, err := m.open(nil)
	if err != nil {
		return err
	}
	return s.Start()
}

func (m *systemManager) Stop() error {
	s, err := m.open(nil)
	if err != nil {
		return err
	}
	return s.Stop()
}

func (m *systemManager) Status() (State, error) {
	s, err := m.open(nil)
	if err != nil {
		return StateUnknown, err
	}

	status, err := s.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return StateNotInstalled, nil
	}
	if err != nil {
		return StateUnknown, err
	}

	switch status {
	case service.StatusRunning:
		return StateRunning, nil
	case service.StatusStopped:
		return StateStopped, nil
	default:
		return StateUnknown, nil
	}
}

func (m *systemManager) Unregister(ctx context.Context) error {
	st, err := m.Status()
	if err == nil && st == StateNotInstalled {
		return nil
	}

	s, err := m.open(nil)
	if err != nil {
		return err
	}

	if err := s.Stop(); err != nil {
		log.Warnf("unable to stop service %s: %v", m.name, err)
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service %s: %w", m.name, err)
	}

	return waitServiceGone(ctx, m.Status, m.pollInterval, m.pollAttempts)
}

// waitServiceGone polls status with a fixed-interval bounded retry until the
// control manager reports the service gone.
func waitServiceGone(ctx context.Context, status func() (State, error), interval time.Duration, attempts uint64) error {
	op := func() error {
		st, err := status()
		if err != nil {
			return err
		}
		if st != StateNotInstalled {
			return ErrServiceStillPresent
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("%s: %w", ServiceName, err)
	}
	return nil
}
