package model

// 删除状态
const (
	NotDeleted         = 0
	DeletedByOwner     = 1
	DeletedByModerator = 2
)

// Topic 主题
type Topic struct {
	ID              int `db:"id_topic"`
	Board           int `db:"id_board"`
	FirstMsg        int `db:"id_first_msg"`
	LastMsg         int `db:"id_last_msg"`
	MemberStarted   int `db:"id_member_started"`
	MemberUpdated   int `db:"id_member_updated"`
	NumReplies      int `db:"num_replies"`
	UnapprovedPosts int `db:"unapproved_posts"`
	Approved        int `db:"approved"`
	IsSticky        int `db:"is_sticky"`
	Deleted         int `db:"deleted"`
	Poll            int `db:"id_poll"`
}

// Message 帖子
type Message struct {
	ID         int    `db:"id_msg"`
	Topic      int    `db:"id_topic"`
	Board      int    `db:"id_board"`
	Member     int    `db:"id_member"`
	Character  int    `db:"id_character"`
	Subject    string `db:"subject"`
	Approved   int    `db:"approved"`
	Deleted    int    `db:"deleted"`
	PosterTime int64  `db:"poster_time"`
}

// MessageWithTopic 帖子及其所属主题的关键字段
type MessageWithTopic struct {
	Message
	TopicBoard    int `db:"topic_board"`
	FirstMsg      int `db:"id_first_msg"`
	LastMsg       int `db:"id_last_msg"`
	NumReplies    int `db:"num_replies"`
	MemberStarted int `db:"id_member_started"`
	TopicDeleted  int `db:"topic_deleted"`
}

// TopicCounters 主题计数
type TopicCounters struct {
	NumReplies      int `db:"num_replies"`
	UnapprovedPosts int `db:"unapproved_posts"`
}

// ReplyCounts 由 approved 帖子数推导回复数
func ReplyCounts(approved, unapproved int) TopicCounters {
	replies := approved - 1
	if replies < 0 {
		replies = 0
	}
	return TopicCounters{NumReplies: replies, UnapprovedPosts: unapproved}
}
