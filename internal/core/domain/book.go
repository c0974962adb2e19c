package domain

import "time"

const (
	CategoryIT         = "IT/프로그래밍"
	CategorySelfHelp   = "자기계발"
	CategoryEconomy    = "경제/경영"
	CategoryLiterature = "소설/문학"
	CategoryOther      = "기타"
)

// Categories lists every label the classifier may emit, in rule order.
var Categories = []string{
	CategoryIT,
	CategorySelfHelp,
	CategoryEconomy,
	CategoryLiterature,
	CategoryOther,
}

// BookRecord is one cataloged file. Filepath is the catalog key and never changes
// once the record has been appended.
type BookRecord struct {
	Filepath string `json:"filepath"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	FileType string `json:"type"`
	TOC      string `json:"toc"`
	Preface  string `json:"preface"`
}

// Content is what an extractor recovers from inside a book file.
type Content struct {
	TOC     string
	Preface string
}

type BookFilter struct {
	Category string
	Limit    int
	Offset   int
}

type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type RunReport struct {
	RunID              string        `json:"run_id"`
	KnownPaths         int           `json:"known_paths"`
	Discovered         int           `json:"discovered"`
	Records            []BookRecord  `json:"records"`
	ExtractionFailures []FileFailure `json:"extraction_failures,omitempty"`
	ScanError          string        `json:"scan_error,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
}
