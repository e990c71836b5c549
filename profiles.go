package sqsredrive

import (
	"bufio"
	"os"
	"sort"
	"strings"
)

// ListProfiles returns the sorted, de-duplicated profile names declared in the given
// shared config and credentials files. Files that cannot be read contribute nothing.
//
// Both "[name]" and "[profile name]" section headers count as profiles. Other prefixed
// sections such as "[sso-session name]" or "[services name]" are skipped.
func ListProfiles(files ...string) []string {
	seen := make(map[string]struct{})
	for _, file := range files {
		for _, name := range readProfileSections(file) {
			seen[name] = struct{}{}
		}
	}
	profiles := make([]string, 0, len(seen))
	for name := range seen {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles
}

func readProfileSections(file string) []string {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.Index(line, "]")
		if end < 0 {
			continue
		}
		if name, ok := profileName(line[1:end]); ok {
			names = append(names, name)
		}
	}
	if scanner.Err() != nil {
		return nil
	}
	return names
}

func profileName(section string) (string, bool) {
	fields := strings.Fields(section)
	switch {
	case len(fields) == 1:
		return fields[0], true
	case len(fields) == 2 && fields[0] == "profile":
		return fields[1], true
	default:
		return "", false
	}
}
