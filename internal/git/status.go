package git

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// FileStatus is one changed path in the working tree.
type FileStatus struct {
	// Path is relative to the repository root.
	Path string
	// OldPath is set for renames.
	OldPath string
	// Staged reports whether the change is in the index.
	Staged bool
}

// Status summarizes the working tree.
type Status struct {
	Branch    string
	Staged    []FileStatus
	Unstaged  []FileStatus
	Untracked []string
	Conflicts []string
}

// HasChanges reports whether anything would be committed by CommitAll.
func (s *Status) HasChanges() bool {
	return len(s.Staged) > 0 || len(s.Unstaged) > 0 || len(s.Untracked) > 0 || len(s.Conflicts) > 0
}

// Status returns the current working tree status using porcelain v2 output.
func (r *Repository) Status(ctx context.Context) (*Status, error) {
	out, err := r.git(ctx, "status", "--porcelain=v2", "--branch", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	status := &Status{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		switch line[0] {
		case '#':
			if rest, ok := strings.CutPrefix(line, "# branch.head "); ok {
				if rest != "(detached)" {
					status.Branch = rest
				}
			}
		case '1':
			status.addOrdinary(line)
		case '2':
			status.addRenamed(line)
		case 'u':
			// u <XY> <sub> <m1> <m2> <m3> <mW> <h1> <h2> <h3> <path>
			if len(strings.Fields(line)) >= 11 {
				status.Conflicts = append(status.Conflicts, fieldTail(line, 10))
			}
		case '?':
			if len(line) > 2 {
				status.Untracked = append(status.Untracked, line[2:])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return status, nil
}

// addOrdinary parses a "1 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <path>" entry.
func (s *Status) addOrdinary(line string) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return
	}
	xy := fields[1]
	// The path is everything from the ninth field on; it may contain spaces.
	path := fieldTail(line, 8)
	if xy[0] != '.' {
		s.Staged = append(s.Staged, FileStatus{Path: path, Staged: true})
	}
	if xy[1] != '.' {
		s.Unstaged = append(s.Unstaged, FileStatus{Path: path})
	}
}

// addRenamed parses a "2 <XY> ... <X><score> <path><tab><origPath>" entry.
func (s *Status) addRenamed(line string) {
	fields := strings.SplitN(line, "\t", 2)
	if len(fields) != 2 {
		return
	}
	head := strings.Fields(fields[0])
	if len(head) < 10 {
		return
	}
	fs := FileStatus{Path: fieldTail(fields[0], 9), OldPath: fields[1]}
	xy := head[1]
	if xy[0] != '.' {
		fs.Staged = true
		s.Staged = append(s.Staged, fs)
	}
	if xy[1] != '.' {
		fs.Staged = false
		s.Unstaged = append(s.Unstaged, fs)
	}
}

// fieldTail returns the remainder of line starting at the nth
// space-separated field. Porcelain v2 separates fixed fields with single
// spaces, so this recovers path fields whose contents include spaces.
func fieldTail(line string, n int) string {
	i := 0
	for field := 0; field < n && i < len(line); field++ {
		for i < len(line) && line[i] != ' ' {
			i++
		}
		for i < len(line) && line[i] == ' ' {
			i++
		}
	}
	return line[i:]
}
