// Package prompt covers the installer's user-decision points. Under
// unattended mode every prompt resolves to its documented default without
// touching the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Confirmer asks the operator a yes/no question. def is the answer assumed
// when the operator just presses enter, and the answer used in unattended
// mode.
type Confirmer interface {
	Confirm(question string, def bool) (bool, error)
}

// Terminal prompts on In/Out, typically stdin/stdout.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "Y/n"
	if !def {
		hint = "y/N"
	}
	if _, err := fmt.Fprintf(t.Out, "%s [%s]: ", question, hint); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Unattended answers every prompt with its default and logs the decision.
type Unattended struct{}

func (Unattended) Confirm(question string, def bool) (bool, error) {
	log.Infof("unattended: %q auto-resolved to %v", question, def)
	return def, nil
}
