package model

// CuratedItem は外部の番組データセット（bangumi-data）の1項目。
// BangumiID が0の項目はbgm.tvの条目に対応付けられていない。
type CuratedItem struct {
	Title     string `json:"title"`
	Begin     string `json:"begin,omitempty"`
	Type      string `json:"type,omitempty"`
	BangumiID int64  `json:"bangumiId,omitempty"`
}

// Resolved はbgm.tvの条目IDに対応付けられているかどうかを返す。
func (c CuratedItem) Resolved() bool {
	return c.BangumiID > 0
}
