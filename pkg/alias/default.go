package alias

// Keys of the 0.2 control constants.
var constantKeys02 = []string{
	"tempFormat", "tempSetMin", "tempSetMax", "pidMax",
	"Kp", "Ki", "Kd", "iMaxErr",
	"idleRangeH", "idleRangeL",
	"heatTargetH", "heatTargetL", "coolTargetH", "coolTargetL",
	"maxHeatTimeForEst", "maxCoolTimeForEst",
	"fridgeFastFilt", "fridgeSlowFilt", "fridgeSlopeFilt",
	"beerFastFilt", "beerSlowFilt", "beerSlopeFilt",
	"lah", "hs",
}

// Keys of the 0.2 control settings.
var settingKeys02 = []string{
	"mode", "beerSet", "fridgeSet", "heatEst", "coolEst",
}

// Renames between 0.1.x and 0.2.
var keys01to02 = map[string]Entry{
	"tempFormat":        {"tempFormat"},
	"tempSetMin":        {"tempSetMin", "tempSettingMin"},
	"tempSetMax":        {"tempSetMax", "tempSettingMax"},
	"Kp":                {"Kp", "KpHeat"},
	"Ki":                {"Ki"},
	"Kd":                {"Kd", "KdHeat"},
	"iMaxErr":           {"iMaxErr", "iMaxError"},
	"idleRangeH":        {"idleRangeH", "idleRangeHigh"},
	"idleRangeL":        {"idleRangeL", "idleRangeLow"},
	"heatTargetH":       {"heatTargetH", "heatingTargetUpper"},
	"heatTargetL":       {"heatTargetL", "heatingTargetLower"},
	"coolTargetH":       {"coolTargetH", "coolingTargetUpper"},
	"coolTargetL":       {"coolTargetL", "coolingTargetLower"},
	"maxHeatTimeForEst": {"maxHeatTimeForEst", "maxHeatTimeForEstimate"},
	"maxCoolTimeForEst": {"maxCoolTimeForEst", "maxCoolTimeForEstimate"},
	"fridgeFastFilt":    {"fridgeFastFilt", "fridgeFastFilter"},
	"fridgeSlowFilt":    {"fridgeSlowFilt", "fridgeSlowFilter"},
	"fridgeSlopeFilt":   {"fridgeSlopeFilt", "fridgeSlopeFilter"},
	"beerFastFilt":      {"beerFastFilt", "beerFastFilter"},
	"beerSlowFilt":      {"beerSlowFilt", "beerSlowFilter"},
	"beerSlopeFilt":     {"beerSlopeFilt", "beerSlopeFilter"},
	"mode":              {"mode"},
	"beerSet":           {"beerSet", "beerSetting", "tempSet"},
	"fridgeSet":         {"fridgeSet", "fridgeSetting"},
	"heatEst":           {"heatEst", "heatEstimator"},
	"coolEst":           {"coolEst", "coolEstimator"},
}

// Default builds the table of transitions known to this release:
//
//	0.1 -> 0.2: settings partially, devices not (the device format changed)
//	0.2 -> 0.2: settings and devices
//	?   -> 0.2: devices only, and only when the old firmware reported them
func Default() Table {
	same := Identity(append(append([]string{}, constantKeys02...), settingKeys02...)...)
	renamed := make(map[string]Entry, len(keys01to02))
	for key, entry := range keys01to02 {
		renamed[key] = append(Entry(nil), entry...)
	}
	return Table{
		MakeTag(0, 1, 0, 2): {Settings: renamed},
		MakeTag(0, 2, 0, 2): {Settings: same, Devices: true},
		UnknownTag(0, 2):    {Devices: true},
	}
}
