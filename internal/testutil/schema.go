package testutil

// schema SQLite 版本的论坛表结构，列名与 MySQL 一致
var schema = []string{
	`CREATE TABLE categories (
		id_cat INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		cat_order INTEGER NOT NULL DEFAULT 0,
		can_collapse INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE boards (
		id_board INTEGER PRIMARY KEY AUTOINCREMENT,
		id_cat INTEGER NOT NULL DEFAULT 0,
		id_parent INTEGER NOT NULL DEFAULT 0,
		child_level INTEGER NOT NULL DEFAULT 0,
		board_order INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		member_groups TEXT NOT NULL DEFAULT '-1,0',
		deny_groups TEXT NOT NULL DEFAULT '',
		redirect TEXT NOT NULL DEFAULT '',
		num_posts INTEGER NOT NULL DEFAULT 0,
		num_topics INTEGER NOT NULL DEFAULT 0,
		unapproved_posts INTEGER NOT NULL DEFAULT 0,
		unapproved_topics INTEGER NOT NULL DEFAULT 0,
		deleted_posts INTEGER NOT NULL DEFAULT 0,
		deleted_topics INTEGER NOT NULL DEFAULT 0,
		count_posts INTEGER NOT NULL DEFAULT 0,
		id_theme INTEGER NOT NULL DEFAULT 0,
		override_theme INTEGER NOT NULL DEFAULT 0,
		id_profile INTEGER NOT NULL DEFAULT 1,
		id_last_msg INTEGER NOT NULL DEFAULT 0,
		id_msg_updated INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE moderators (id_board INTEGER NOT NULL, id_member INTEGER NOT NULL, PRIMARY KEY (id_board, id_member))`,
	`CREATE TABLE moderator_groups (id_board INTEGER NOT NULL, id_group INTEGER NOT NULL, PRIMARY KEY (id_board, id_group))`,
	`CREATE TABLE log_boards (id_member INTEGER NOT NULL, id_board INTEGER NOT NULL, id_msg INTEGER NOT NULL DEFAULT 0)`,
	`CREATE TABLE log_mark_read (id_member INTEGER NOT NULL, id_board INTEGER NOT NULL, id_msg INTEGER NOT NULL DEFAULT 0)`,
	`CREATE TABLE log_notify (id_member INTEGER NOT NULL, id_topic INTEGER NOT NULL DEFAULT 0, id_board INTEGER NOT NULL DEFAULT 0)`,
	`CREATE TABLE membergroups (
		id_group INTEGER PRIMARY KEY,
		group_name TEXT NOT NULL DEFAULT '',
		is_character INTEGER NOT NULL DEFAULT 0,
		id_parent INTEGER NOT NULL DEFAULT -2,
		group_type INTEGER NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE permissions (id_group INTEGER NOT NULL, permission TEXT NOT NULL, add_deny INTEGER NOT NULL DEFAULT 1)`,
	`CREATE TABLE board_permissions (id_group INTEGER NOT NULL, id_profile INTEGER NOT NULL DEFAULT 1, permission TEXT NOT NULL, add_deny INTEGER NOT NULL DEFAULT 1)`,
	`CREATE TABLE group_moderators (id_group INTEGER NOT NULL, id_member INTEGER NOT NULL)`,
	`CREATE TABLE log_group_requests (id_request INTEGER PRIMARY KEY AUTOINCREMENT, id_member INTEGER NOT NULL, id_group INTEGER NOT NULL)`,
	`CREATE TABLE members (
		id_member INTEGER PRIMARY KEY,
		member_name TEXT NOT NULL DEFAULT '',
		real_name TEXT NOT NULL DEFAULT '',
		id_group INTEGER NOT NULL DEFAULT 0,
		additional_groups TEXT NOT NULL DEFAULT '',
		posts INTEGER NOT NULL DEFAULT 0,
		instant_messages INTEGER NOT NULL DEFAULT 0,
		unread_messages INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE characters (
		id_character INTEGER PRIMARY KEY,
		id_member INTEGER NOT NULL DEFAULT 0,
		character_name TEXT NOT NULL DEFAULT '',
		main_char_group INTEGER NOT NULL DEFAULT 0,
		char_groups TEXT NOT NULL DEFAULT '',
		posts INTEGER NOT NULL DEFAULT 0,
		instant_messages INTEGER NOT NULL DEFAULT 0,
		unread_messages INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE subscriptions (
		id_subscribe INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		id_group INTEGER NOT NULL DEFAULT 0,
		add_groups TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE topics (
		id_topic INTEGER PRIMARY KEY,
		id_board INTEGER NOT NULL DEFAULT 0,
		id_first_msg INTEGER NOT NULL DEFAULT 0,
		id_last_msg INTEGER NOT NULL DEFAULT 0,
		id_member_started INTEGER NOT NULL DEFAULT 0,
		id_member_updated INTEGER NOT NULL DEFAULT 0,
		num_replies INTEGER NOT NULL DEFAULT 0,
		unapproved_posts INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 1,
		is_sticky INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		id_poll INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE messages (
		id_msg INTEGER PRIMARY KEY,
		id_topic INTEGER NOT NULL DEFAULT 0,
		id_board INTEGER NOT NULL DEFAULT 0,
		id_member INTEGER NOT NULL DEFAULT 0,
		id_character INTEGER NOT NULL DEFAULT 0,
		subject TEXT NOT NULL DEFAULT '',
		approved INTEGER NOT NULL DEFAULT 1,
		deleted INTEGER NOT NULL DEFAULT 0,
		poster_time INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE polls (id_poll INTEGER PRIMARY KEY, question TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE poll_choices (id_poll INTEGER NOT NULL, id_choice INTEGER NOT NULL, label TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE log_polls (id_poll INTEGER NOT NULL, id_member INTEGER NOT NULL, id_choice INTEGER NOT NULL)`,
	`CREATE TABLE attachments (id_attach INTEGER PRIMARY KEY AUTOINCREMENT, id_msg INTEGER NOT NULL, filename TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE log_search_words (id_word INTEGER NOT NULL, id_msg INTEGER NOT NULL)`,
	`CREATE TABLE log_search_subjects (word TEXT NOT NULL, id_topic INTEGER NOT NULL)`,
	`CREATE TABLE log_topics (id_member INTEGER NOT NULL, id_topic INTEGER NOT NULL, id_msg INTEGER NOT NULL DEFAULT 0)`,
	`CREATE TABLE log_reported (
		id_report INTEGER PRIMARY KEY AUTOINCREMENT,
		id_msg INTEGER NOT NULL DEFAULT 0,
		id_topic INTEGER NOT NULL DEFAULT 0,
		closed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE pm_recipients (
		id_pm INTEGER NOT NULL,
		id_member INTEGER NOT NULL DEFAULT 0,
		id_character INTEGER NOT NULL DEFAULT 0,
		is_read INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE settings (variable TEXT PRIMARY KEY, value TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE log_actions (
		id_action INTEGER PRIMARY KEY,
		id_log TEXT NOT NULL DEFAULT '',
		log_time INTEGER NOT NULL DEFAULT 0,
		id_member INTEGER NOT NULL DEFAULT 0,
		action TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT ''
	)`,
}

// 初始化时写入的保留用户组
var reservedGroups = []string{
	`INSERT INTO membergroups (id_group, group_name, is_character, group_type) VALUES (1, 'Administrator', 0, 1)`,
	`INSERT INTO membergroups (id_group, group_name, is_character, group_type) VALUES (2, 'Global Moderator', 0, 0)`,
	`INSERT INTO membergroups (id_group, group_name, is_character, group_type) VALUES (3, 'Board Moderator', 0, 0)`,
}
