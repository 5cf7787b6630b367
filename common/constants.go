package common

const (
	BaseWidth  = 1280
	BaseHeight = 720

	// ThrowScale multiplies the releasing hand's velocity.
	ThrowScale = 1.3

	BallID        = "basketball"
	HoopID        = "hoop"
	RimID         = "rim"
	LeftHandID    = "lcontroller"
	RightHandID   = "rcontroller"
	DefaultBuild  = "dev"
	PanelLimit    = 12
	SnapshotRoute = "/spectate"
)
