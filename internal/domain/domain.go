package domain

import "time"

// FileKind selects which subset of a manuscript's files to bundle.
// It is forwarded verbatim to the download endpoint.
type FileKind string

const (
	EssentialFiles FileKind = "essential"
	AllFiles       FileKind = "all"
)

type Manuscript struct {
	// ReceivedAt is when the manuscript entered the validation queue
	ReceivedAt time.Time `json:"receivedAt,omitzero"`
	MSID       string    `json:"msid"`
	Title      string    `json:"title"`
	DOI        string    `json:"doi,omitempty"`
	Journal    string    `json:"journal,omitempty"`
	Status     string    `json:"status,omitempty"`
	Authors    []string  `json:"authors,omitempty"`
	Figures    []Figure  `json:"figures,omitempty"`
	// Identifiers are external database links (DOI, UniProt, PDB, ...)
	Identifiers []LinkedIdentifier `json:"identifiers,omitempty"`
	Files       []FileEntry        `json:"files,omitempty"`
}

type Figure struct {
	Label  string    `json:"label"`
	Title  string    `json:"title,omitempty"`
	Panels []Panel   `json:"panels,omitempty"`
	Checks []QCCheck `json:"checks,omitempty"`
}

type Panel struct {
	Label  string    `json:"label"`
	Checks []QCCheck `json:"checks,omitempty"`
}

// QCCheck is a single quality-control verdict on a figure or panel.
// AI-generated checks are flagged so curators can weight them accordingly.
type QCCheck struct {
	Type        string `json:"type"`
	Outcome     string `json:"outcome"` // pass | warn | fail
	Message     string `json:"message,omitempty"`
	AIGenerated bool   `json:"aiGenerated,omitempty"`
}

type LinkedIdentifier struct {
	Kind  string `json:"kind"` // doi, uniprot, pdb, rrid, ...
	Value string `json:"value"`
	URL   string `json:"url,omitempty"`
}

// FileEntry describes one downloadable file attached to a manuscript.
// Content is only populated by the mock corpus; the real upstream serves
// bytes over HTTP.
type FileEntry struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"` // MIME type, if not resolved then extension
	Size      int64  `json:"size,omitempty"`
	Essential bool   `json:"essential,omitempty"`
	Content   []byte `json:"-"`
}

// DownloadProgress is the last-writer-wins snapshot of one download session.
// It is overwritten wholesale on every incoming stream event.
type DownloadProgress struct {
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	CurrentFile     string `json:"currentFile,omitempty"`
	TotalFiles      int    `json:"totalFiles,omitempty"`
	DownloadedFiles int    `json:"downloadedFiles,omitempty"`
	CurrentFileSize string `json:"currentFileSize,omitempty"`
	DownloadSpeed   string `json:"downloadSpeed,omitempty"`
}

// Stream event type discriminators, as emitted by the progress endpoint.
const (
	EventProgress  = "progress"
	EventComplete  = "complete"
	EventError     = "error"
	EventCancelled = "cancelled"
)

// StreamEvent is the union of all message shapes the progress stream carries.
// Which fields are meaningful depends on Type.
type StreamEvent struct {
	Type            string `json:"type"`
	Status          string `json:"status,omitempty"`
	Progress        int    `json:"progress,omitempty"`
	CurrentFile     string `json:"currentFile,omitempty"`
	TotalFiles      int    `json:"totalFiles,omitempty"`
	DownloadedFiles int    `json:"downloadedFiles,omitempty"`
	CurrentFileSize string `json:"currentFileSize,omitempty"`
	DownloadSpeed   string `json:"downloadSpeed,omitempty"`
	// complete events
	SuccessfulFiles int    `json:"successfulFiles,omitempty"`
	Filename        string `json:"filename,omitempty"`
	// error events
	Error string `json:"error,omitempty"`
	// cancelled events
	Message string `json:"message,omitempty"`
}
