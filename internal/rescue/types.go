package rescue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownStatus   = errors.New("unknown rescue status")
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrMarkIncomplete  = errors.New("mark for deletion requires both reason and reporter")
)

// Status is the lifecycle state of a rescue. The zero value is StatusOpen.
type Status int

const (
	StatusOpen Status = iota
	StatusClosed
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusInactive:
		return "inactive"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open", "":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	case "inactive":
		return StatusInactive, nil
	default:
		return StatusOpen, fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusOpen, StatusClosed, StatusInactive:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Platform is the game platform a client plays on. PlatformNone means unknown.
type Platform string

const (
	PlatformNone Platform = ""
	PlatformPC   Platform = "pc"
	PlatformXbox Platform = "xb"
	PlatformPS   Platform = "ps"
)

// ParsePlatform accepts the common spellings operators type in chat.
func ParsePlatform(value string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return PlatformNone, nil
	case "pc":
		return PlatformPC, nil
	case "xb", "xbox", "xb1", "xbox one":
		return PlatformXbox, nil
	case "ps", "ps4", "ps5", "playstation":
		return PlatformPS, nil
	default:
		return PlatformNone, fmt.Errorf("%w: %q", ErrUnknownPlatform, value)
	}
}

func (p Platform) Label() string {
	switch p {
	case PlatformPC:
		return "PC"
	case PlatformXbox:
		return "XB"
	case PlatformPS:
		return "PS"
	default:
		return "unknown platform"
	}
}

// Rat is an identified responder assigned to a rescue.
type Rat struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Platform Platform  `json:"platform,omitempty"`
}

// UnidentifiedRat is a placeholder responder known only by chat name.
type UnidentifiedRat struct {
	Name     string   `json:"name"`
	Platform Platform `json:"platform,omitempty"`
}

// MarkForDeletion flags a rescue for review before it is purged.
// An empty Reason or Reporter means the value is absent.
type MarkForDeletion struct {
	Marked   bool   `json:"marked"`
	Reason   string `json:"reason,omitempty"`
	Reporter string `json:"reporter,omitempty"`
}

// NormalizeRatName is the key under which responders are stored.
func NormalizeRatName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
