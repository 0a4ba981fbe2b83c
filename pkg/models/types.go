package models

// Authentication informs the client that authentication finished for the
// given user.
type Authentication struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Cookie seeds the client's built-in browser during a web login step.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// NextStep tells the client to continue authentication in its built-in
// browser with the given parameters.
type NextStep struct {
	NextStep   string              `json:"next_step"`
	AuthParams map[string]string   `json:"auth_params"`
	Cookies    []Cookie            `json:"cookies,omitempty"`
	JS         map[string][]string `json:"js,omitempty"`
}

// AuthResult is the outcome of an authentication step: either a finished
// Authentication or a NextStep, never both.
type AuthResult struct {
	Authentication *Authentication
	NextStep       *NextStep
}

// Finished reports whether the step produced a logged-in user.
func (r AuthResult) Finished() bool { return r.Authentication != nil }

// LicenseInfo describes the license attached to a product. Owner defaults to
// the currently authenticated user when empty.
type LicenseInfo struct {
	LicenseType LicenseType `json:"license_type"`
	Owner       string      `json:"owner,omitempty"`
}

// Dlc is a downloadable content object of a game.
type Dlc struct {
	DlcID       string      `json:"dlc_id"`
	DlcTitle    string      `json:"dlc_title"`
	LicenseInfo LicenseInfo `json:"license_info"`
}

// Game is one owned game of the authenticated user.
type Game struct {
	GameID      string      `json:"game_id"`
	GameTitle   string      `json:"game_title"`
	Dlcs        []Dlc       `json:"dlcs,omitempty"`
	LicenseInfo LicenseInfo `json:"license_info"`
}

// Achievement is identified by id or name; at least one must be set.
type Achievement struct {
	UnlockTime      int64  `json:"unlock_time"`
	AchievementID   string `json:"achievement_id,omitempty"`
	AchievementName string `json:"achievement_name,omitempty"`
}

// LocalGame is a game present on the user's machine.
type LocalGame struct {
	GameID         string         `json:"game_id"`
	LocalGameState LocalGameState `json:"local_game_state"`
}

// UserInfo describes a user related to the authenticated one.
type UserInfo struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// GameTime is the total play time of a game in minutes and the unix time the
// game was last played. Nil pointers mean the value is not known.
type GameTime struct {
	GameID         string `json:"game_id"`
	TimePlayed     *int64 `json:"time_played,omitempty"`
	LastPlayedTime *int64 `json:"last_played_time,omitempty"`
}

// GameLibrarySettings carries the tags and visibility of a game in the
// client's library.
type GameLibrarySettings struct {
	GameID string   `json:"game_id"`
	Tags   []string `json:"tags,omitempty"`
	Hidden *bool    `json:"hidden,omitempty"`
}

// UserPresence is the presence information of a user.
type UserPresence struct {
	PresenceState  PresenceState `json:"presence_state"`
	GameID         string        `json:"game_id,omitempty"`
	GameTitle      string        `json:"game_title,omitempty"`
	PresenceStatus string        `json:"presence_status,omitempty"`
}
