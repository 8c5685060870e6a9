package sfm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// ProjectStatus is the normalized lifecycle state of a remote project.
type ProjectStatus string

const (
	StatusUnknown  ProjectStatus = "unknown"
	StatusQueued   ProjectStatus = "queued"
	StatusRunning  ProjectStatus = "running"
	StatusComplete ProjectStatus = "complete"
	StatusMissing  ProjectStatus = "missing"
)

// CodeProjectNotFound is the structured code the service may attach to a
// status response for a project it no longer has.
const CodeProjectNotFound = "project_not_found"

// Status is the payload of GET /projects/{id}/status.
type Status struct {
	Text           string `json:"status"`
	Code           string `json:"code,omitempty"`
	HasPointCloud  bool   `json:"has_pointcloud"`
	HasCameraPoses bool   `json:"has_camera_poses"`
}

// Project is a remote reconstruction project tracked for a template.
type Project struct {
	ID        string
	SourceKey string
	Status    ProjectStatus
}

var (
	missingPhrases  = []string{"no such file", "not found", "不存在", "没有这样的文件"}
	completePhrases = []string{"完成", "complete", "done", "finished", "success"}
	runningPhrases  = []string{"执行中", "running", "processing", "in progress"}
	queuedPhrases   = []string{"queued", "pending", "waiting", "等待", "排队"}
	negations       = []string{"not", "never", "未", "没", "没有", "尚未"}
)

// HasArtifacts reports whether either reconstruction output exists.
func (s Status) HasArtifacts() bool {
	return s.HasPointCloud || s.HasCameraPoses
}

// Derive maps the free-text status and artifact flags to a ProjectStatus.
// Progress text wins over completion words, so "running (40% complete)" is
// running. Completion words only count as whole, non-negated words.
func (s Status) Derive() ProjectStatus {
	switch {
	case IsMissingProject(s):
		return StatusMissing
	case s.HasArtifacts():
		return StatusComplete
	case containsAny(s.Text, runningPhrases):
		return StatusRunning
	case containsAny(s.Text, queuedPhrases):
		return StatusQueued
	case containsWord(s.Text, completePhrases):
		return StatusComplete
	default:
		return StatusUnknown
	}
}

// Running reports whether the service is already reconstructing.
func (s Status) Running() bool {
	return s.Derive() == StatusRunning
}

// Finished reports whether polling can stop. Completion text without
// artifact flags counts, but it never short-circuits starting a job; see
// HasArtifacts for that decision.
func (s Status) Finished() bool {
	return s.Derive() == StatusComplete
}

// IsMissingProject reports whether the service no longer has the project.
// A structured code wins over the free-text phrase match.
func IsMissingProject(s Status) bool {
	if code := strings.TrimSpace(s.Code); code != "" {
		return strings.EqualFold(code, CodeProjectNotFound)
	}
	return containsAny(s.Text, missingPhrases)
}

func containsAny(text string, phrases []string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	folder := cases.Fold()
	folded := folder.String(text)
	for _, phrase := range phrases {
		if strings.Contains(folded, folder.String(phrase)) {
			return true
		}
	}
	return false
}

// containsWord reports whether any phrase occurs as a standalone word that is
// not preceded by a negation.
func containsWord(text string, phrases []string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	folder := cases.Fold()
	folded := folder.String(text)
	for _, phrase := range phrases {
		phrase = folder.String(phrase)
		for offset := 0; offset < len(folded); {
			i := strings.Index(folded[offset:], phrase)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(phrase)
			if isWordAt(folded, start, end) && !negated(folded[:start]) {
				return true
			}
			offset = end
		}
	}
	return false
}

// isWordAt reports whether folded[start:end] is not glued to surrounding
// letters. Han phrases have no word boundaries and always qualify.
func isWordAt(folded string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(folded[start:end])
	if unicode.Is(unicode.Han, first) {
		return true
	}
	if before, _ := utf8.DecodeLastRuneInString(folded[:start]); start > 0 && isWordRune(before) {
		return false
	}
	if after, _ := utf8.DecodeRuneInString(folded[end:]); end < len(folded) && isWordRune(after) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func negated(prefix string) bool {
	prefix = strings.TrimRightFunc(prefix, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, neg := range negations {
		if !strings.HasSuffix(prefix, neg) {
			continue
		}
		rest := strings.TrimSuffix(prefix, neg)
		first, _ := utf8.DecodeRuneInString(neg)
		last, _ := utf8.DecodeLastRuneInString(rest)
		if rest == "" || unicode.Is(unicode.Han, first) || !isWordRune(last) {
			return true
		}
	}
	return false
}
