package revision

import (
	"slices"

	"github.com/hitoshi/bgmx/internal/model"
)

// Apply は基底となるSubjectに修正履歴を先頭から順に適用した結果を返す。
// base は変更しない。
//
// 許可リストにないパス、またはパスの型として解釈できない修正に到達した時点で畳み込みを中断し、
// それまでに適用した結果と false を返す。中断した修正以降は適用しない。
// 呼び出し側で有効な修正のみを作成順に渡すこと。
func Apply(base *model.Subject, revisions []model.Revision) (*model.Subject, bool) {
	subject := base.Clone()
	for _, rev := range revisions {
		if err := applyDetail(&subject.Search, rev.Detail); err != nil {
			return subject, false
		}
	}
	return subject, true
}

// ApplyDetails はRevisionDetailの列を適用する。Apply と同じ規則に従う。
func ApplyDetails(base *model.Subject, details []model.RevisionDetail) (*model.Subject, bool) {
	subject := base.Clone()
	for _, detail := range details {
		if err := applyDetail(&subject.Search, detail); err != nil {
			return subject, false
		}
	}
	return subject, true
}

func applyDetail(search *model.SubjectSearch, detail model.RevisionDetail) error {
	spec, ok := LookupPath(detail.Path)
	if !ok {
		return ErrUnsupportedPath
	}
	c, err := spec.decode(detail)
	if err != nil {
		return err
	}

	if spec.kind == kindTime {
		*spec.time(search) = c.time
		return nil
	}

	field := spec.list(search)
	switch c.op {
	case model.OperationSetAdd:
		*field = union(*field, c.list)
	case model.OperationSetDelete:
		if *field != nil {
			*field = difference(*field, c.list)
		}
	case model.OperationFieldSet:
		*field = slices.Clone(c.list)
	}
	return nil
}

// union は current に続けて incoming を並べ、初出順を保って重複を除いた新しいスライスを返す。
func union(current, incoming []string) []string {
	out := make([]string, 0, len(current)+len(incoming))
	seen := make(map[string]struct{}, len(current)+len(incoming))
	for _, list := range [][]string{current, incoming} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// difference は current から removed に含まれる要素を取り除いた新しいスライスを返す。
func difference(current, removed []string) []string {
	drop := make(map[string]struct{}, len(removed))
	for _, v := range removed {
		drop[v] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, v := range current {
		if _, ok := drop[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
