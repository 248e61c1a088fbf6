package post

import "strings"

// wordsPerMinute は読了時間の算出に使う1分あたりの単語数。
const wordsPerMinute = 200

// ReadingTime は本文の単語数から読了時間（分）を算出する。
// 空白区切りの単語数を200で割って切り上げ、最小値は1分。
func ReadingTime(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
