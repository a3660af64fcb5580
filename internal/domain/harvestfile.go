package domain

import "sort"

// HarvestFile is one row of the known-file ledger: a harvest CSV that has been
// seen, and whether its rows have reached the data table. Registration and the
// ingested flag are the idempotency protocol: a file name appears at most
// once per scope, and a run that dies between register and load resumes from
// the flag.
type HarvestFile struct {
	DirPath       string
	FileName      string
	DataDateTime  string // timemark, ISO "YYYY-MM-DDTHH:MM:SS"
	DataBeginTime string // min TIME in the body, empty when the body is empty
	DataEndTime   string // max TIME in the body
	DataSource    string
	SourceName    string
	SourceArchive string
	// SourceVariable and LocationType carry the owning source's descriptor
	// onto observation ledger rows; model rows identify by instance instead.
	SourceVariable string
	LocationType   string
	Ingested       bool
	// OverlapPastFileDateTime is retained for ledger compatibility. Nothing
	// writes true: overlap trimming was retired in favor of the duplicate
	// resolver, which handles the same collisions after load.
	OverlapPastFileDateTime bool
}

// Empty reports whether the file body carried no data rows. Empty files are
// registered already ingested so rediscovery never reconsiders them.
func (h HarvestFile) Empty() bool {
	return h.DataBeginTime == "" && h.DataEndTime == ""
}

// SortFiles orders candidates by data date, then name for a stable tie-break.
// The pending query and range logging both rely on this order.
func SortFiles(files []HarvestFile) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].DataDateTime != files[j].DataDateTime {
			return files[i].DataDateTime < files[j].DataDateTime
		}
		return files[i].FileName < files[j].FileName
	})
}

// LedgerScope identifies one source's slice of the ledger. Instance narrows
// model scopes to a single run instance; observation scopes leave it empty
// and narrow by Variable instead.
type LedgerScope struct {
	Scope         Scope
	DataSource    string
	SourceName    string
	SourceArchive string
	Variable      string
	Instance      string
}
