package dtos

type ServerStatusResponse struct {
	ActiveMatches      int    `json:"activeMatches"`
	OpenConnections    int    `json:"openConnections"`
	PersistFailures    int64  `json:"persistFailures"`
	TaskProtected      bool   `json:"taskProtected"`
	PersistenceBackend string `json:"persistenceBackend"`
}
