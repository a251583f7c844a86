package chapters

import (
	"strconv"
	"strings"
)

// Filter applies the first non-empty selector: a single chapter (label first,
// then 1-based index), an index range "a-b", or an index list "a,b,c".
func Filter(all []Chapter, chapter string, rng string, list string) []Chapter {
	if chapter != "" {
		byLabel := FilterChaptersByLabel(all, chapter)
		if len(byLabel) > 0 {
			return byLabel
		}
		if idx, err := atoi(chapter); err == nil {
			if idx > 0 && idx <= len(all) {
				return []Chapter{all[idx-1]}
			}
		}
		return []Chapter{}
	}
	if rng != "" {
		return FilterChapterRange(all, rng)
	}
	if list != "" {
		return FilterChapterList(all, list)
	}
	return all
}

// FilterChaptersByLabel matches exact labels, or the trailing number of a
// label such as "Chapitre 12" for input "12".
func FilterChaptersByLabel(all []Chapter, label string) []Chapter {
	label = strings.TrimSpace(label)

	var out []Chapter
	for _, ch := range all {
		if strings.EqualFold(ch.Label, label) || lastField(ch.Label) == label {
			out = append(out, ch)
		}
	}
	return out
}

// FilterText keeps chapters whose label contains text, ignoring case.
func FilterText(all []Chapter, text string) []Chapter {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return all
	}

	var out []Chapter
	for _, ch := range all {
		if strings.Contains(strings.ToLower(ch.Label), text) {
			out = append(out, ch)
		}
	}
	return out
}

func FilterChapterRange(all []Chapter, rng string) []Chapter {
	start, end, ok := strings.Cut(rng, "-")
	if !ok {
		return nil
	}
	from, err1 := atoi(start)
	to, err2 := atoi(end)
	if err1 != nil || err2 != nil {
		return nil
	}
	if from <= 0 || to <= 0 || from > to || to > len(all) {
		return nil
	}
	return all[from-1 : to]
}

func FilterChapterList(all []Chapter, list string) []Chapter {
	out := []Chapter{}
	for _, n := range strings.Split(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		idx, err := atoi(n)
		if err != nil {
			continue
		}
		if idx > 0 && idx <= len(all) {
			out = append(out, all[idx-1])
		}
	}
	return out
}

func lastField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
