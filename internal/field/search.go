package field

var searchModesByKind = map[Kind][]SearchMode{
	KindString:    {SearchOff, SearchExact, SearchExactSet},
	KindText:      {SearchOff, SearchExact, SearchExactSet},
	KindRichtext:  {SearchOff, SearchExact, SearchExactSet},
	KindURL:       {SearchOff, SearchExact, SearchExactSet},
	KindEnum:      {SearchOff, SearchExact, SearchExactSet},
	KindBoolean:   {SearchOff, SearchExact, SearchExactSet},
	KindNumber:    {SearchOff, SearchExact, SearchRange},
	KindInteger:   {SearchOff, SearchExact, SearchRange},
	KindDate:      {SearchOff, SearchExact, SearchRange},
	KindDateTime:  {SearchOff, SearchExact, SearchRange},
	KindReference: {SearchOff},
	KindAsset:     {SearchOff},
}

// AllowedSearchModes returns the search modes a field of kind k may declare
func AllowedSearchModes(k Kind) []SearchMode {
	if modes, ok := searchModesByKind[k]; ok {
		return modes
	}
	return []SearchMode{SearchOff}
}

// SearchModeAllowed reports whether mode is legal for kind k
func SearchModeAllowed(k Kind, mode SearchMode) bool {
	for _, m := range AllowedSearchModes(k) {
		if m == mode {
			return true
		}
	}
	return false
}

// Filterable reports whether fields of kind k may be used as filters
func Filterable(k Kind) bool {
	return k.Valid() && !k.IsRelation()
}

// Sortable reports whether fields of kind k may be used for ordering
func Sortable(k Kind) bool {
	switch k {
	case KindString, KindURL, KindEnum, KindBoolean, KindNumber, KindInteger, KindDate, KindDateTime:
		return true
	}
	return false
}
