package chart

import (
	"strings"

	"github.com/samber/lo"

	"github.com/mrcode/loopchart/internal/models"
)

// AnnouncementKind is the command recognized in an announcement note
type AnnouncementKind int

// Announcement kinds. Declaration order is match precedence.
const (
	AnnouncementUnknown AnnouncementKind = iota
	AnnouncementSuspend
	AnnouncementResume
	AnnouncementTempBasal
	AnnouncementOverride
	AnnouncementMeal
	AnnouncementBolus
	AnnouncementClosedLoop
	AnnouncementOpenLoop
)

var announcementVocabulary = []struct {
	kind    AnnouncementKind
	keyword string
	name    string
	label   string
}{
	{AnnouncementSuspend, "suspend", "suspend", "suspend"},
	{AnnouncementResume, "resume", "resume", "resume"},
	{AnnouncementTempBasal, "tempbasal", "tempbasal", "basal"},
	{AnnouncementOverride, "override", "override", "👤"},
	{AnnouncementMeal, "meal", "meal", "🍴"},
	{AnnouncementBolus, "bolus", "bolus", "💧"},
	{AnnouncementClosedLoop, "true", "closed", "closed"},
	{AnnouncementOpenLoop, "false", "open", "open"},
}

func (k AnnouncementKind) String() string {
	for _, v := range announcementVocabulary {
		if v.kind == k {
			return v.name
		}
	}
	return ""
}

// MarshalText encodes the kind by name
func (k AnnouncementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Label returns the short marker text drawn above the announcement
func (k AnnouncementKind) Label() string {
	for _, v := range announcementVocabulary {
		if v.kind == k {
			return v.label
		}
	}
	return ""
}

// ClassifyAnnouncement matches note against the command vocabulary,
// ignoring case. The first keyword in precedence order wins.
func ClassifyAnnouncement(note string) AnnouncementKind {
	command := strings.ToLower(note)
	for _, v := range announcementVocabulary {
		if strings.Contains(command, v.keyword) {
			return v.kind
		}
	}
	return AnnouncementUnknown
}

const announcementSize = 8 * 2.5

func buildAnnouncements(f *frame) func(*Geometry) {
	dots := lo.Map(f.in.Announcements, func(a models.Announcement, _ int) AnnouncementDot {
		center := f.interpolatedPoint(a.CreatedAt)
		kind := ClassifyAnnouncement(a.Notes)
		return AnnouncementDot{
			Rect: Rect{
				X: center.X - announcementSize/2,
				Y: center.Y - announcementSize/2,
				W: announcementSize,
				H: announcementSize,
			},
			Note:  a.Notes,
			Kind:  kind,
			Label: kind.Label(),
		}
	})
	return func(g *Geometry) { g.Announcements = dots }
}
