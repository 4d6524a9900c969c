package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/growagarden/gagstock-bot/internal/graph"
)

// ProfileFetcher looks up Graph profile fields for a user.
type ProfileFetcher interface {
	Profile(ctx context.Context, userID string) (*graph.UserProfile, error)
}

// Profile shows the sender their Graph profile fields.
type Profile struct {
	profiles ProfileFetcher
}

func NewProfile(profiles ProfileFetcher) *Profile {
	return &Profile{profiles: profiles}
}

func (*Profile) Name() string        { return "profile" }
func (*Profile) Description() string { return "Show your profile information" }

func (p *Profile) Execute(ctx context.Context, senderID string, args []string, bc BotCtx) error {
	profile, err := p.profiles.Profile(ctx, senderID)
	if err != nil {
		bc.Logger().Printf("Profile command: lookup failed for %s: %v", senderID, err)
		return reply(ctx, bc, senderID, "Sorry, I couldn't retrieve your profile information.")
	}

	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	if name == "" {
		name = "Not available"
	}
	return reply(ctx, bc, senderID, fmt.Sprintf("Your profile:\nName: %s", name))
}
