package pipeline

import "time"

// Kind enumerates the generation pipelines the backend can run.
type Kind string

const (
	// KindStory generates the narrative for a project from a pitch.
	KindStory Kind = "story"

	// KindStoryboard generates storyboard frames for an existing story.
	KindStoryboard Kind = "storyboard"

	// KindDirector generates the director/visual script for a story.
	KindDirector Kind = "director"

	// KindAsset generates reference sheets for a single asset.
	KindAsset Kind = "asset"
)

func (k Kind) String() string { return string(k) }

// ParseKind converts a string to a Kind. Unknown values map to the empty
// kind.
func ParseKind(s string) Kind {
	switch s {
	case "story":
		return KindStory
	case "storyboard":
		return KindStoryboard
	case "director":
		return KindDirector
	case "asset":
		return KindAsset
	default:
		return ""
	}
}

// DefaultPollInterval returns the status poll interval for a pipeline kind.
// Image-producing pipelines are coarser-grained and are polled half as often.
func (k Kind) DefaultPollInterval() time.Duration {
	switch k {
	case KindStoryboard, KindAsset:
		return 2 * time.Second
	default:
		return time.Second
	}
}
