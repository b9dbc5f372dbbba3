package models

// Match pairs a candidate daemon with its discovery score.
type Match struct {
	Daemon Daemon
	Score  int
}
