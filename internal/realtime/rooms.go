package realtime

// Room names are canonical strings derived from a resource kind and id.
// No id validation happens here: a malformed id yields a malformed but
// harmless room name, and joins to rooms nobody broadcasts to are no-ops.

const (
	roomAdmin  = "admin"
	roomGlobal = "global"
)

func TreeRoom(treeId string) string {
	return "tree:" + treeId
}

func ForestRoom(forestId string) string {
	return "forest:" + forestId
}

func UserRoom(userId string) string {
	return "user:" + userId
}

func AdminRoom() string {
	return roomAdmin
}

func GlobalRoom() string {
	return roomGlobal
}
