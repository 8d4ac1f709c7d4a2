package values

// AsInt coerces numerically and truncates to an integer index.
func AsInt(v Val) (int64, error) {
	n, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if i, ok := n.(Int); ok {
		return int64(i), nil
	}
	return int64(n.(Double)), nil
}

// IndexInto implements `x[i]`: integer indexing with negative-from-end,
// index arrays selecting several elements, and string keys into hash
// tables. An out-of-range element read yields $null quietly, matching
// PowerShell.
func IndexInto(recv, idx Val) (Val, error) {
	if IsUnknown(recv) || IsUnknown(idx) {
		return Unknown{}, nil
	}
	switch r := recv.(type) {
	case *Array:
		return indexSequence(r.Items, idx)
	case Range:
		return indexSequence(r.Realize().Items, idx)
	case Str:
		runes := []rune(string(r))
		items := make([]Val, len(runes))
		for i, c := range runes {
			items[i] = Char(c)
		}
		return indexSequence(items, idx)
	case *HashTable:
		if arr, ok := idx.(*Array); ok {
			out := &Array{}
			for _, k := range arr.Items {
				v, _ := r.Get(k.Display())
				out.Items = append(out.Items, v)
			}
			return out, nil
		}
		v, _ := r.Get(idx.Display())
		return v, nil
	case Null:
		return Null{}, nil
	}
	return Null{}, NewTypeMismatch("index", recv.TypeName(), idx.TypeName())
}

func indexSequence(items []Val, idx Val) (Val, error) {
	if arr, ok := idx.(*Array); ok {
		out := &Array{}
		for _, i := range arr.Items {
			v, err := indexSequence(items, i)
			if err != nil {
				return Null{}, err
			}
			out.Items = append(out.Items, v)
		}
		return out, nil
	}
	if rng, ok := idx.(Range); ok {
		return indexSequence(items, rng.Realize())
	}
	i, err := AsInt(idx)
	if err != nil {
		return Null{}, err
	}
	if i < 0 {
		i += int64(len(items))
	}
	if i < 0 || i >= int64(len(items)) {
		return Null{}, nil
	}
	return items[i], nil
}

// SetIndex implements `x[i] = v` for arrays and hash tables, mutating in
// place.
func SetIndex(recv, idx, v Val) error {
	switch r := recv.(type) {
	case *Array:
		i, err := AsInt(idx)
		if err != nil {
			return err
		}
		if i < 0 {
			i += int64(len(r.Items))
		}
		if i < 0 || i >= int64(len(r.Items)) {
			return NewIndexOutOfBounds(i, len(r.Items))
		}
		r.Items[i] = v
		return nil
	case *HashTable:
		r.Set(idx.Display(), v)
		return nil
	}
	return NewTypeMismatch("index assignment", recv.TypeName(), idx.TypeName())
}
