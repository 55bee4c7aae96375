package github

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
)

// Placeholder is shown for counts that could not be loaded.
const Placeholder = "- -"

// ProfileBase prefixes usernames in fallback profile links.
const ProfileBase = "https://github.com/"

// Count is a number that may not have loaded yet.
type Count struct {
	Value int
	Known bool
}

// Known returns a loaded count.
func Known(n int) Count { return Count{Value: n, Known: true} }

func (c Count) String() string {
	if !c.Known {
		return Placeholder
	}
	return strconv.Itoa(c.Value)
}

// MarshalJSON encodes a number, or the placeholder string.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal(Placeholder)
	}
	return json.Marshal(c.Value)
}

// RepoView is what the repository widget binds.
type RepoView struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Stars  Count  `json:"starsCount"`
	Forks  Count  `json:"forksCount"`
	Loaded bool   `json:"-"`
}

// UserView is what the profile widget binds.
type UserView struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	URL       string `json:"url"`
	Loaded    bool   `json:"-"`
}

// BindRepo loads a repository into a view. Failures are logged and
// leave the placeholders in place.
func BindRepo(ctx context.Context, api API, logger logging.Logger, fullName string) RepoView {
	view := RepoView{Name: fullName}
	repo, err := api.GetRepo(ctx, fullName)
	if err != nil {
		warn(ctx, logger, err, "repo", fullName)
		return view
	}
	view.URL = repo.HTMLURL
	view.Stars = Known(repo.StargazersCount)
	view.Forks = Known(repo.ForksCount)
	view.Loaded = true
	return view
}

// BindUser loads a user into a view. On failure the view links to the
// profile page built from the username.
func BindUser(ctx context.Context, api API, logger logging.Logger, username string) UserView {
	view := UserView{Username: username, Name: username, URL: ProfileBase + username}
	user, err := api.GetUser(ctx, username)
	if err != nil {
		warn(ctx, logger, err, "user", username)
		return view
	}
	if user.Name != "" {
		view.Name = user.Name
	}
	if user.HTMLURL != "" {
		view.URL = user.HTMLURL
	}
	view.AvatarURL = user.AvatarURL
	view.Loaded = true
	return view
}

func warn(ctx context.Context, logger logging.Logger, err error, kv ...interface{}) {
	if logger == nil {
		return
	}
	msg := err.Error()
	var ge *gerrors.GingerError
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	logger.Warn(ctx, err, "GitHub: "+msg, kv...)
}
