package pipeline

// Stats accumulates over one pipeline run, including pages that partially
// failed. The error log keeps flattened strings for the run record; the
// underlying errors carry their kind (RegistryError, PersistenceError)
// for callers that log them structurally.
type Stats struct {
	TotalFetched      int
	NewEstablishments int
	RatingChanges     int
	Errors            int
	ErrorLog          []string
}

func (s *Stats) recordError(err error) {
	if err == nil {
		return
	}
	s.Errors++
	s.ErrorLog = append(s.ErrorLog, err.Error())
}

func (s *Stats) errorLogString() string {
	if len(s.ErrorLog) == 0 {
		return ""
	}
	out := s.ErrorLog[0]
	for _, line := range s.ErrorLog[1:] {
		out += "\n" + line
	}
	return out
}
