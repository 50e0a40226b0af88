package models

type Tag struct {
	ID      string `db:"id" json:"id"`
	Tagname string `db:"tagname" json:"tagname"`
}
