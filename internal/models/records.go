package models

import "time"

// City is one row of the cities table.
type City struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	PhotoURL    string `json:"photoUrl"`
	Description string `json:"description"`
}

// Photo is one row of the photos table.
type Photo struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
	Date    string `json:"date"`
}

// Quote is one row of the quotes table.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Date   string `json:"date"`
}

// Table is the raw payload of one spreadsheet table as returned by the data endpoint.
type Table struct {
	Name      string     `json:"name"`
	Values    [][]string `json:"values"`
	FetchedAt time.Time  `json:"fetchedAt"`
}
