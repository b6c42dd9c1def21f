package stats

// Heroes lists the known hero keys, aggregate first. The stats endpoint may
// return keys outside this list; it only feeds the filter suggestions.
var Heroes = []string{
	AllHeroes,
	"ana", "ashe", "baptiste", "bastion", "brigitte", "cassidy", "doomfist", "dva", "echo",
	"genji", "hanzo", "illari", "junkerqueen", "junkrat", "kiriko", "lifeweaver", "lucio",
	"mauga", "mei", "mercy", "moira", "orisa", "pharah", "ramattra", "reaper", "reinhardt",
	"roadhog", "sigma", "sojourn", "soldier-76", "sombra", "symmetra", "torbjorn", "tracer",
	"widowmaker", "winston", "wrecking-ball", "zarya", "zenyatta",
}
