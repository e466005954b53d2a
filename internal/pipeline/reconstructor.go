package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/transcript"
)

// DefaultLinkTemplate is the externally addressable link shape markers are
// converted into. {video} and {seconds} are substituted.
const DefaultLinkTemplate = "https://www.youtube.com/watch?v={video}&t={seconds}s"

// Reconstruct merges processed chunk texts back together in original order,
// prepends the untouched metadata block, and converts every internal time
// marker in the body into an external link. The conversion never touches
// the metadata block, so the canonical annotated transcript stored there
// stays marker-form and round-trippable.
func Reconstruct(metadataBlock string, chunkTexts []string, videoID, linkTemplate string) models.Document {
	body := strings.Join(chunkTexts, "")
	return models.Document{
		MetadataBlock: metadataBlock,
		Body:          LinkMarkers(body, videoID, linkTemplate),
	}
}

// LinkMarkers rewrites every marker:N token in text as a Markdown link
// labelled with the HH:MM:SS form of N.
func LinkMarkers(text, videoID, linkTemplate string) string {
	if linkTemplate == "" {
		linkTemplate = DefaultLinkTemplate
	}
	return transcript.ReplaceMarkers(text, func(seconds int) string {
		url := strings.ReplaceAll(linkTemplate, "{video}", videoID)
		url = strings.ReplaceAll(url, "{seconds}", strconv.Itoa(seconds))
		return fmt.Sprintf("[%s](%s)", transcript.Clock(seconds), url)
	})
}

// timeLinkRe matches links produced by LinkMarkers with the default
// template.
var timeLinkRe = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\]\([^)]*[?&]v=([^&)]+)&t=(\d+)s\)`)

// ExtractLinks returns the (video, seconds) pairs of every generated time
// link in text, in order. Used to verify the marker-to-link round trip.
func ExtractLinks(text string) []LinkRef {
	var out []LinkRef
	for _, m := range timeLinkRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, LinkRef{VideoID: m[1], Seconds: n})
	}
	return out
}

// LinkRef identifies one generated time link.
type LinkRef struct {
	VideoID string
	Seconds int
}
