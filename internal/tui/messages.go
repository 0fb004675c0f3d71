package tui

type analysisDoneMsg struct {
	err  error
	html string
	seq  int
}

type savedMsg struct {
	err error
}
