package library

// Report summarizes one pass over the upload directory.
type Report struct {
	ScannedFiles int      `json:"scanned_files"`
	NewBooks     int      `json:"new_books"`
	UpdatedBooks int      `json:"updated_books"`
	EnqueuedJobs int      `json:"enqueued_jobs"`
	Errors       []string `json:"errors,omitempty"`
}

func cloneReport(src *Report) *Report {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Errors = append([]string(nil), src.Errors...)
	return &dst
}
