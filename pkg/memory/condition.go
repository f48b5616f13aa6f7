package memory

import (
	"regexp"
	"strings"

	"github.com/harun/turnkit/pkg/chat"
)

// MessageEvent is delivered to reactive subscribers
type MessageEvent struct {
	Role    string           `json:"role"`
	Message chat.ChatMessage `json:"message"`
}

// Condition selects the events a subscriber receives
type Condition func(MessageEvent) bool

// Matches reports whether ev satisfies the condition. A nil condition matches everything.
func (c Condition) Matches(ev MessageEvent) bool {
	if c == nil {
		return true
	}
	return c(ev)
}

func Any() Condition {
	return func(MessageEvent) bool { return true }
}

func Eq(text string) Condition {
	return func(ev MessageEvent) bool { return ev.Message.Content == text }
}

func Contains(text string) Condition {
	return func(ev MessageEvent) bool { return strings.Contains(ev.Message.Content, text) }
}

func NotContains(text string) Condition {
	return func(ev MessageEvent) bool { return !strings.Contains(ev.Message.Content, text) }
}

func RoleIs(role string) Condition {
	return func(ev MessageEvent) bool { return ev.Role == role }
}

func RoleNot(role string) Condition {
	return func(ev MessageEvent) bool { return ev.Role != role }
}

// LenGt matches content longer than n bytes
func LenGt(n int) Condition {
	return func(ev MessageEvent) bool { return len(ev.Message.Content) > n }
}

func Empty() Condition {
	return func(ev MessageEvent) bool { return ev.Message.Content == "" }
}

// Regex matches content against pattern. An invalid pattern never matches.
func Regex(pattern string) Condition {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return func(MessageEvent) bool { return false }
	}
	return func(ev MessageEvent) bool { return re.MatchString(ev.Message.Content) }
}

// Custom matches with an arbitrary predicate on the message
func Custom(fn func(chat.ChatMessage) bool) Condition {
	return func(ev MessageEvent) bool { return fn(ev.Message) }
}

func All(conds ...Condition) Condition {
	return func(ev MessageEvent) bool {
		for _, c := range conds {
			if !c.Matches(ev) {
				return false
			}
		}
		return true
	}
}

func AnyOf(conds ...Condition) Condition {
	return func(ev MessageEvent) bool {
		for _, c := range conds {
			if c.Matches(ev) {
				return true
			}
		}
		return false
	}
}
