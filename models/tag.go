package models

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
