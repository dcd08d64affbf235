package composer

import "strings"

// reportingNames maps airframe type names from the telemetry feed to the
// spoken name used on the radio (NATO reporting names for eastern types,
// common nicknames for western ones).
var reportingNames = map[string]string{
	"F/A-18A":       "hornet",
	"F/A-18C":       "hornet",
	"FA-18C_hornet": "hornet",
	"F-14A":         "tomcat",
	"F-14B":         "tomcat",
	"F-15C":         "eagle",
	"F-15E":         "eagle",
	"F-15ESE":       "eagle",
	"F-16A":         "viper",
	"F-16A MLU":     "viper",
	"F-16C_50":      "viper",
	"F-16C bl.50":   "viper",
	"F-16C bl.52d":  "viper",
	"F-4E":          "phantom",
	"F-5E":          "tiger",
	"F-5E-3":        "tiger",
	"F-117A":        "nighthawk",
	"A-10A":         "warthog",
	"A-10C":         "warthog",
	"A-10C_2":       "warthog",
	"AV8BNA":        "harrier",
	"M-2000C":       "mirage",
	"Mirage 2000-5": "mirage",
	"AJS37":         "viggen",
	"JF-17":         "thunder",
	"B-1B":          "lancer",
	"B-52H":         "stratofortress",
	"C-130":         "hercules",
	"KC-130":        "hercules tanker",
	"KC-135":        "stratotanker",
	"KC135MPRS":     "stratotanker",
	"C-17A":         "globemaster",
	"E-2C":          "hawkeye",
	"E-3A":          "sentry",
	"S-3B":          "viking",
	"S-3B Tanker":   "viking",

	"MiG-15bis": "fagot",
	"MiG-19P":   "farmer",
	"MiG-21Bis": "fishbed",
	"MiG-23MLD": "flogger",
	"MiG-27K":   "flogger",
	"MiG-25PD":  "foxbat",
	"MiG-25RBT": "foxbat",
	"MiG-29A":   "fulcrum",
	"MiG-29G":   "fulcrum",
	"MiG-29S":   "fulcrum",
	"MiG-31":    "foxhound",
	"Su-17M4":   "fitter",
	"Su-24M":    "fencer",
	"Su-24MR":   "fencer",
	"Su-25":     "frogfoot",
	"Su-25T":    "frogfoot",
	"Su-25TM":   "frogfoot",
	"Su-27":     "flanker",
	"Su-30":     "flanker",
	"Su-33":     "flanker",
	"J-11A":     "flanker",
	"Su-34":     "fullback",
	"Tu-22M3":   "backfire",
	"Tu-95MS":   "bear",
	"Tu-142":    "bear",
	"Tu-160":    "blackjack",
	"A-50":      "mainstay",
	"IL-76MD":   "candid",
	"IL-78M":    "midas",
	"An-26B":    "curl",

	"Ka-50":        "black shark",
	"Ka-50_3":      "black shark",
	"Mi-8MT":       "hip",
	"Mi-24P":       "hind",
	"Mi-24V":       "hind",
	"Mi-28N":       "havoc",
	"AH-64A":       "apache",
	"AH-64D":       "apache",
	"AH-64D_BLK_II": "apache",
	"UH-1H":        "huey",
	"UH-60A":       "black hawk",
	"SA342L":       "gazelle",
	"SA342M":       "gazelle",

	"MQ-9 Reaper":   "reaper",
	"RQ-1A Predator": "predator",
}

// ReportingName returns the spoken name for an airframe type. Unmapped types
// fall back to the raw name, which beats saying nothing; an empty type is
// "unknown".
func ReportingName(typeName string) string {
	if typeName == "" {
		return "unknown"
	}
	if spoken, ok := reportingNames[typeName]; ok {
		return spoken
	}
	return strings.ToLower(typeName)
}
