package model

// Web is a model with a json representation for the web client.
type Web[T any] interface {
	ToWeb() *T
}

func WebList[N Web[T], T any](l []N) []*T {
	res := make([]*T, len(l))

	for i, x := range l {
		res[i] = x.ToWeb()
	}

	return res
}
