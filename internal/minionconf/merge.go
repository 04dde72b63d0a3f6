package minionconf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Merge patches the authoritative master and id directives into the config at
// path. The file is streamed line by line into a temp file in the same
// directory and swapped in atomically only after a clean full pass; any error
// leaves the original untouched.
//
// The first line carrying a master:/id: directive (bare, or commented at the
// first byte) is replaced in place; "  - " continuation lines following a
// replaced master directive are consumed. Later duplicates are deliberately
// left as-is, matching long-standing installer behavior on hand-edited
// configs. Absent directives are appended at end of file. Values equal to
// their sentinel defaults are not patched, so a plain install never rewrites
// the file. Running Merge twice with the same inputs is byte-stable.
func Merge(path, master, minionID string) error {
	patchMaster := master != "" && master != DefaultMaster
	patchID := minionID != "" && minionID != DefaultMinionID
	if !patchMaster && !patchID {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config for merge: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+FileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create merge temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	w := bufio.NewWriter(tmp)
	scanner := bufio.NewScanner(in)

	var masterDone, idDone, skipListItems bool
	for scanner.Scan() {
		line := scanner.Text()

		if skipListItems {
			if _, ok := listItem(line); ok {
				continue
			}
			skipListItems = false
		}

		if patchMaster && !masterDone && matchesDirective(line, "master:") {
			writeMasterDirective(w, master)
			masterDone = true
			skipListItems = true
			continue
		}

		if patchID && !idDone && matchesDirective(line, "id:") {
			fmt.Fprintf(w, "id: %s\n", minionID)
			idDone = true
			continue
		}

		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		cleanup()
		return fmt.Errorf("read config during merge: %w", err)
	}

	if patchMaster && !masterDone {
		writeMasterDirective(w, master)
	}
	if patchID && !idDone {
		fmt.Fprintf(w, "id: %s\n", minionID)
	}

	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("write merged config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close merged config: %w", err)
	}
	if err := in.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close config: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// matchesDirective reports whether line carries the directive at the first
// byte, or commented out at the second ("#master:", "#id:").
func matchesDirective(line, directive string) bool {
	if strings.HasPrefix(line, directive) {
		return true
	}
	return strings.HasPrefix(line, "#") && strings.HasPrefix(line[1:], directive)
}

// writeMasterDirective emits a single "master: value" line, or a block list
// when the comma-split input has multiple entries.
func writeMasterDirective(w *bufio.Writer, master string) {
	var items []string
	for _, item := range strings.Split(master, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	if len(items) <= 1 {
		value := master
		if len(items) == 1 {
			value = items[0]
		}
		fmt.Fprintf(w, "master: %s\n", value)
		return
	}

	w.WriteString("master:\n")
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
