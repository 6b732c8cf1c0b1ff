package model

// Issue is an issue in the remote tracker.
type Issue struct {
	ID     int64
	Number int
	Title  string
	Body   string
	URL    string
}

// ThreadIssue associates one chat thread with one tracker issue number.
type ThreadIssue struct {
	ThreadID    uint64
	IssueNumber int
}
