package scan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/action-gate/actiongate/internal/domain/action"
)

// Default bounds keep scanning predictable for untrusted inputs.
const (
	DefaultMaxTextChars      = 20_000
	DefaultMaxPayloadStrings = 500
	DefaultMaxPayloadDepth   = 32
)

// maxSnippetChars caps the matched text carried in a finding.
const maxSnippetChars = 160

// Rule pairs a compiled pattern with the finding it produces.
type Rule struct {
	ReasonID string
	Severity Severity
	Message  string
	Pattern  *regexp.Regexp
}

// DefaultRules returns the built-in injection and risky-instruction
// rules. Callers get a fresh slice; the compiled patterns are shared and
// safe for concurrent use.
func DefaultRules() []Rule {
	return []Rule{
		{
			ReasonID: "prompt_injection.ignore_instructions",
			Severity: SeverityCritical,
			Message:  "Instruction override attempt detected",
			Pattern:  regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?)\b`),
		},
		{
			ReasonID: "prompt_injection.exfiltrate_system_prompt",
			Severity: SeverityHigh,
			Message:  "Attempt to reveal protected system/developer prompt",
			Pattern:  regexp.MustCompile(`(?i)\b(reveal|show|print|dump)\s+(the\s+)?(system|developer)\s+(prompt|instructions?)\b`),
		},
		{
			ReasonID: "prompt_injection.bypass_safety_controls",
			Severity: SeverityHigh,
			Message:  "Attempt to bypass safety controls",
			Pattern:  regexp.MustCompile(`(?i)\b(bypass|disable|override)\s+(safety|guardrails?|polic(y|ies)|restrictions?)\b`),
		},
		{
			ReasonID: "risky_instruction.secret_exfiltration",
			Severity: SeverityHigh,
			Message:  "Potential secret exfiltration instruction",
			Pattern:  regexp.MustCompile(`(?is)\b(exfiltrat(e|ion)|send|upload|leak)\b.{0,60}\b(api[_\s-]?key|token|secret|credential|password)s?\b`),
		},
		{
			ReasonID: "risky_instruction.remote_script_execution",
			Severity: SeverityCritical,
			Message:  "Remote script execution pipeline detected",
			Pattern:  regexp.MustCompile(`(?i)\bcurl\b[^\n|]*\|\s*(bash|sh)\b`),
		},
		{
			ReasonID: "risky_instruction.destructive_command",
			Severity: SeverityCritical,
			Message:  "Destructive command pattern detected",
			Pattern:  regexp.MustCompile(`(?i)\brm\s+-rf\s+/|\b(drop|truncate)\s+table\b`),
		},
	}
}

// Options bound a scanner. Zero values take the defaults.
type Options struct {
	// MaxTextChars caps how many characters of a text segment are scanned.
	MaxTextChars int
	// MaxPayloadStrings caps how many string leaves one payload scan visits.
	MaxPayloadStrings int
	// MaxPayloadDepth caps payload nesting; deeper nodes are skipped, not
	// an error.
	MaxPayloadDepth int
}

// Scanner applies rule patterns to request text and payload leaves.
type Scanner struct {
	rules []Rule
	opts  Options
}

// NewScanner builds a scanner with the default rules.
func NewScanner(opts Options) *Scanner {
	return NewScannerWithRules(DefaultRules(), opts)
}

// NewScannerWithRules builds a scanner with a custom rule set.
func NewScannerWithRules(rules []Rule, opts Options) *Scanner {
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = DefaultMaxTextChars
	}
	if opts.MaxPayloadStrings <= 0 {
		opts.MaxPayloadStrings = DefaultMaxPayloadStrings
	}
	if opts.MaxPayloadDepth <= 0 {
		opts.MaxPayloadDepth = DefaultMaxPayloadDepth
	}
	return &Scanner{rules: rules, opts: opts}
}

// ScanRequest scans a request's description, target, context, and payload
// string leaves. Findings identical in (reason id, field, snippet ignoring
// case) are reported once.
func (s *Scanner) ScanRequest(req action.Request) Result {
	var findings []Finding
	findings = append(findings, s.ScanText(req.Description, "description")...)
	findings = append(findings, s.ScanText(req.Target, "target")...)
	if req.Context != "" {
		findings = append(findings, s.ScanText(req.Context, "context")...)
	}
	findings = append(findings, s.ScanPayload(req.Payload)...)
	return Result{Findings: dedupe(findings)}
}

// ScanText runs every rule against one text segment, truncated to the
// configured cap. Each rule reports at most its first match.
func (s *Scanner) ScanText(text, field string) []Finding {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	text = truncateRunes(text, s.opts.MaxTextChars)

	var findings []Finding
	for _, rule := range s.rules {
		match := rule.Pattern.FindString(text)
		if match == "" {
			continue
		}
		snippet := truncateRunes(strings.TrimSpace(match), maxSnippetChars)
		findings = append(findings, Finding{
			ReasonID: rule.ReasonID,
			Severity: rule.Severity,
			Message:  rule.Message,
			Field:    field,
			Snippet:  snippet,
		})
	}
	return findings
}

// workItem is one node on the traversal stack.
type workItem struct {
	node  any
	path  string
	depth int
}

// ScanPayload walks the payload with an explicit work-list, never
// recursion, so hostile nesting cannot crash the scanner. Nodes past the
// depth cap are skipped; traversal stops after the string-leaf cap.
func (s *Scanner) ScanPayload(payload map[string]any) []Finding {
	var findings []Finding
	visited := 0
	stack := []workItem{{node: payload, path: "payload", depth: 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.depth > s.opts.MaxPayloadDepth {
			continue
		}

		switch node := item.node.(type) {
		case string:
			findings = append(findings, s.ScanText(node, item.path)...)
			visited++
			if visited >= s.opts.MaxPayloadStrings {
				return findings
			}
		case map[string]any:
			keys := make([]string, 0, len(node))
			for key := range node {
				keys = append(keys, key)
			}
			// Sorted keys, pushed in reverse so they pop in order:
			// traversal order stays independent of map iteration.
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, workItem{
					node:  node[keys[i]],
					path:  item.path + "." + keys[i],
					depth: item.depth + 1,
				})
			}
		case []any:
			for i := len(node) - 1; i >= 0; i-- {
				stack = append(stack, workItem{
					node:  node[i],
					path:  fmt.Sprintf("%s[%d]", item.path, i),
					depth: item.depth + 1,
				})
			}
		}
	}
	return findings
}

// truncateRunes caps s at max runes, never splitting a UTF-8 sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// dedupe drops findings repeating an earlier (reason id, field,
// lowercased snippet) triple, keeping first occurrences in order.
func dedupe(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		key := xxhash.Sum64String(f.ReasonID + "\x00" + f.Field + "\x00" + strings.ToLower(f.Snippet))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
