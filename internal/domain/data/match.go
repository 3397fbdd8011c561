package data

// Match is a search hit: the row and its position at the time of the search
type Match struct {
	Index int `json:"index"`
	Row   Row `json:"row"`
}
