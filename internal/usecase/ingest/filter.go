package ingest

import "unicode/utf8"

const (
	minCommentScore  = 2
	minCommentLength = 10
)

// KeepComment — фильтр хранения: комментарий попадает в БД только при заметной
// вовлечённости (|score| >= 2) и осмысленной длине тела (>= 10 символов).
func KeepComment(score int, body string) bool {
	if score < 0 {
		score = -score
	}
	return score >= minCommentScore && utf8.RuneCountInString(body) >= minCommentLength
}
