package executor

// NoDataMessage is the text returned in place of CSV when a query produced no rows.
const NoDataMessage = "No data available"

// Result is the successful outcome of an execution or of a latest-result fetch.
type Result struct {
	// CSV is empty when NoData is set.
	CSV         string `json:"csv,omitempty"`
	NoData      bool   `json:"no_data,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	RowCount    int    `json:"row_count"`
	// Attempts is the number of status checks made; zero for latest-result fetches.
	Attempts int `json:"attempts,omitempty"`
}

func (r *Result) String() string {
	if r == nil || r.NoData {
		return NoDataMessage
	}
	return r.CSV
}
