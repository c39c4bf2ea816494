package ledger

// TrendPoint summarizes one snapshot's totals together with the change
// against the previous snapshot.
type TrendPoint struct {
	Timestamp     string `json:"timestamp"`
	Followers     int    `json:"followers"`
	Following     int    `json:"following"`
	FollowerDiff  int    `json:"followerDiff"`
	FollowingDiff int    `json:"followingDiff"`
}

// SnapshotTrend reduces the merged snapshot sequence to per-snapshot totals
// and deltas for the summary view.
func SnapshotTrend(dataset *Dataset) []TrendPoint {
	if dataset == nil {
		return []TrendPoint{}
	}
	points := make([]TrendPoint, 0, len(dataset.MergedSnapshots))
	for index, snapshot := range dataset.MergedSnapshots {
		point := TrendPoint{
			Timestamp: snapshot.Timestamp,
			Followers: len(snapshot.Followers),
			Following: len(snapshot.Following),
		}
		if index > 0 {
			point.FollowerDiff = point.Followers - points[index-1].Followers
			point.FollowingDiff = point.Following - points[index-1].Following
		}
		points = append(points, point)
	}
	return points
}
