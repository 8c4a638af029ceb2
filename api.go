package vfat32

import "time"

// UndefinedTimestamp is reported for an on-disk FAT date whose day or month
// field is zero (an unset date). It is the zero time.Time, so it can be
// detected with IsZero.
var UndefinedTimestamp = time.Time{}
