package minionconf

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// SecurityDescriptorOwner reads the owning SID of a path from its security
// descriptor.
type SecurityDescriptorOwner struct{}

func NewOwnerLookup() OwnerLookup {
	return &SecurityDescriptorOwner{}
}

func (SecurityDescriptorOwner) Owner(path string) (string, error) {
	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, windows.OWNER_SECURITY_INFORMATION)
	if err != nil {
		return "", fmt.Errorf("get security info for %s: %w", path, err)
	}

	owner, _, err := sd.Owner()
	if err != nil {
		return "", fmt.Errorf("read owner sid for %s: %w", path, err)
	}
	return owner.String(), nil
}
