// Package models defines the domain types exchanged with the host client.
package models

// Platform identifies the gaming platform an integration connects to.
type Platform string

const (
	PlatformUnknown   Platform = "unknown"
	PlatformGeneric   Platform = "generic"
	PlatformSteam     Platform = "steam"
	PlatformPsn       Platform = "psn"
	PlatformXBoxOne   Platform = "xboxone"
	PlatformOrigin    Platform = "origin"
	PlatformUplay     Platform = "uplay"
	PlatformBattlenet Platform = "battlenet"
	PlatformEpic      Platform = "epic"
	PlatformBethesda  Platform = "bethesda"
	PlatformItchIo    Platform = "itch"
	PlatformHumble    Platform = "humble"
	PlatformRockstar  Platform = "rockstar"
	PlatformAmazon    Platform = "amazon"
	PlatformTwitch    Platform = "twitch"
	PlatformMinecraft Platform = "minecraft"
	PlatformTest      Platform = "test"
)

// Feature is an optional protocol capability an integration can declare.
// The set is closed and versioned by the protocol.
type Feature string

const (
	FeatureImportInstalledGames       Feature = "ImportInstalledGames"
	FeatureImportOwnedGames           Feature = "ImportOwnedGames"
	FeatureLaunchGame                 Feature = "LaunchGame"
	FeatureInstallGame                Feature = "InstallGame"
	FeatureUninstallGame              Feature = "UninstallGame"
	FeatureImportAchievements         Feature = "ImportAchievements"
	FeatureImportGameTime             Feature = "ImportGameTime"
	FeatureImportFriends              Feature = "ImportFriends"
	FeatureShutdownPlatformClient     Feature = "ShutdownPlatformClient"
	FeatureLaunchPlatformClient       Feature = "LaunchPlatformClient"
	FeatureImportGameLibrarySettings  Feature = "ImportGameLibrarySettings"
	FeatureImportOSCompatibility      Feature = "ImportOSCompatibility"
	FeatureImportUserPresence         Feature = "ImportUserPresence"
)

// LicenseType describes how the user owns a game.
type LicenseType string

const (
	LicenseUnknown          LicenseType = "Unknown"
	LicenseSinglePurchase   LicenseType = "SinglePurchase"
	LicenseFreeToPlay       LicenseType = "FreeToPlay"
	LicenseOtherUserLicense LicenseType = "OtherUserLicense"
)

// LocalGameState is a bit set describing a locally present game. A game that
// is installed and currently running carries both flags.
type LocalGameState int

const (
	LocalGameStateNone      LocalGameState = 0
	LocalGameStateInstalled LocalGameState = 1 << 0
	LocalGameStateRunning   LocalGameState = 1 << 1
)

// Has reports whether all bits of flag are set.
func (s LocalGameState) Has(flag LocalGameState) bool { return s&flag == flag }

// OSCompatibility is a bit set of operating systems a game runs on.
type OSCompatibility int

const (
	OSWindows OSCompatibility = 1 << 0
	OSMacOS   OSCompatibility = 1 << 1
	OSLinux   OSCompatibility = 1 << 2
)

// Has reports whether all bits of flag are set.
func (c OSCompatibility) Has(flag OSCompatibility) bool { return c&flag == flag }

// PresenceState describes the online state of a user.
type PresenceState string

const (
	PresenceUnknown PresenceState = "unknown"
	PresenceOnline  PresenceState = "online"
	PresenceOffline PresenceState = "offline"
	PresenceAway    PresenceState = "away"
)
