package state

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/registry"
)

const (
	productKeyPath   = `SOFTWARE\Salt Project\Salt`
	uninstallKeyPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\salt-minion`
	appPathsRoot     = `SOFTWARE\Microsoft\Windows\CurrentVersion\App Paths`

	installDirValue = "install_dir"
	rootDirValue    = "root_dir"
	versionValue    = "version"
)

// RegistryStore persists the installation record under
// HKLM\SOFTWARE\Salt Project\Salt. Paths are stored as REG_EXPAND_SZ and
// expanded on load.
type RegistryStore struct{}

func NewRegistryStore() *RegistryStore {
	return &RegistryStore{}
}

func (s *RegistryStore) Load() (*Record, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, productKeyPath, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open key HKLM\\%s: %w", productKeyPath, err)
	}
	defer k.Close()

	installDir, err := readExpandedString(k, installDirValue)
	if err != nil {
		return nil, err
	}
	rootDir, err := readExpandedString(k, rootDirValue)
	if err != nil {
		return nil, err
	}
	if installDir == "" && rootDir == "" {
		return nil, nil
	}

	// version is informational, absence is fine
	priorVersion, _, err := k.GetStringValue(versionValue)
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		log.Warnf("unable to read %s from HKLM\\%s: %v", versionValue, productKeyPath, err)
	}

	return &Record{InstallDir: installDir, RootDir: rootDir, Version: priorVersion}, nil
}

func (s *RegistryStore) Save(record *Record) error {
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, productKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create key HKLM\\%s: %w", productKeyPath, err)
	}
	defer k.Close()

	if err := k.SetExpandStringValue(installDirValue, record.InstallDir); err != nil {
		return fmt.Errorf("set %s: %w", installDirValue, err)
	}
	if err := k.SetExpandStringValue(rootDirValue, record.RootDir); err != nil {
		return fmt.Errorf("set %s: %w", rootDirValue, err)
	}
	if err := k.SetStringValue(versionValue, record.Version); err != nil {
		return fmt.Errorf("set %s: %w", versionValue, err)
	}
	return nil
}

func (s *RegistryStore) Delete() error {
	err := registry.DeleteKey(registry.LOCAL_MACHINE, productKeyPath)
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete key HKLM\\%s: %w", productKeyPath, err)
	}
	return nil
}

func (s *RegistryStore) RegisterCommands(installDir string, exes []string) error {
	for _, exe := range exes {
		keyPath := appPathsRoot + `\` + exe
		k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, keyPath, registry.SET_VALUE)
		if err != nil {
			return fmt.Errorf("create key HKLM\\%s: %w", keyPath, err)
		}
		err = k.SetStringValue("", installDir+`\`+exe)
		if cErr := k.Close(); err == nil {
			err = cErr
		}
		if err != nil {
			return fmt.Errorf("register command %s: %w", exe, err)
		}
	}
	return nil
}

func (s *RegistryStore) UnregisterCommands(exes []string) error {
	for _, exe := range exes {
		keyPath := appPathsRoot + `\` + exe
		err := registry.DeleteKey(registry.LOCAL_MACHINE, keyPath)
		if err != nil && !errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("delete key HKLM\\%s: %w", keyPath, err)
		}
	}
	return nil
}

func (s *RegistryStore) WriteUninstallEntry(entry UninstallEntry) error {
	k, _, err := registry.CreateKey(registry.LOCAL_MACHINE, uninstallKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create key HKLM\\%s: %w", uninstallKeyPath, err)
	}
	defer k.Close()

	values := map[string]string{
		"DisplayName":     entry.DisplayName,
		"DisplayVersion":  entry.DisplayVersion,
		"Publisher":       entry.Publisher,
		"UninstallString": entry.UninstallString,
		"InstallLocation": entry.InstallLocation,
	}
	for name, value := range values {
		if err := k.SetStringValue(name, value); err != nil {
			return fmt.Errorf("set uninstall value %s: %w", name, err)
		}
	}
	return nil
}

func (s *RegistryStore) DeleteUninstallEntry() error {
	err := registry.DeleteKey(registry.LOCAL_MACHINE, uninstallKeyPath)
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete key HKLM\\%s: %w", uninstallKeyPath, err)
	}
	return nil
}

func readExpandedString(k registry.Key, name string) (string, error) {
	value, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	expanded, err := registry.ExpandString(value)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", name, err)
	}
	return expanded, nil
}
