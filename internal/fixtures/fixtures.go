// Package fixtures holds the development data set: a handful of creators,
// their videos, a comment thread with nested replies, stories and a chat.
// Every accessor builds a fresh copy.
package fixtures

import (
	"time"

	"backend-fliptok/internal/chat"
	"backend-fliptok/internal/comment"
	"backend-fliptok/internal/feed"
	"backend-fliptok/internal/profile"
	"backend-fliptok/internal/shared/timestamp"
	"backend-fliptok/internal/sound"
	"backend-fliptok/internal/story"

	"github.com/google/uuid"
)

// Password is shared by every fixture account.
const Password = "fliptok-dev"

var epoch = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

// ID derives a stable UUID so reseeding hits the same rows.
func ID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fliptok:"+kind+":"+name)).String()
}

type User struct {
	Email   string
	Profile profile.Profile
}

// Chat is a stored conversation: the sorted participant pair and its history.
type Chat struct {
	ID       string
	UserA    string
	UserB    string
	Messages []chat.Message
}

func Users() []User {
	mk := func(handle, name, bio string, day int) User {
		return User{
			Email: handle + "@fliptok.dev",
			Profile: profile.Profile{
				User: profile.User{
					ID:          ID("user", handle),
					Handle:      handle,
					DisplayName: name,
					AvatarURL:   "https://i.pravatar.cc/150?u=" + handle,
				},
				Bio:       bio,
				CreatedAt: epoch.AddDate(0, 0, -day),
			},
		}
	}
	return []User{
		mk("maya", "Maya Chen", "sunsets, surf, slow mornings", 30),
		mk("leo", "Leo Park", "street food in 60 seconds", 25),
		mk("sofia", "Sofia Ruiz", "dance covers every friday", 20),
		mk("kai", "Kai Nakamura", "skate clips and bad puns", 10),
	}
}

func Sounds() []sound.Sound {
	return []sound.Sound{
		{ID: ID("sound", "golden-hour"), Title: "Golden Hour", Artist: "Lumen", CoverURL: "https://picsum.photos/seed/golden/200", DurationSec: 32, Uses: 1},
		{ID: ID("sound", "night-drive"), Title: "Night Drive", Artist: "Neon Tides", CoverURL: "https://picsum.photos/seed/drive/200", DurationSec: 45, Uses: 1},
		{ID: ID("sound", "sizzle"), Title: "Sizzle", Artist: "Kitchen Beats", CoverURL: "https://picsum.photos/seed/sizzle/200", DurationSec: 28, Uses: 1},
	}
}

func FeedItems() []feed.Item {
	mk := func(name, owner, caption, soundName string, likes, comments, shares int64, hours int) feed.Item {
		it := feed.Item{
			ID:           ID("feed", name),
			UserID:       ID("user", owner),
			VideoURL:     "https://storage.googleapis.com/gtv-videos-bucket/sample/" + name + ".mp4",
			ThumbnailURL: "https://picsum.photos/seed/" + name + "/320/568",
			Caption:      caption,
			Likes:        likes,
			Comments:     comments,
			Shares:       shares,
			CreatedAt:    timestamp.From(epoch.Add(-time.Duration(hours) * time.Hour)),
		}
		it.Author.ID = it.UserID
		if soundName != "" {
			id := ID("sound", soundName)
			it.SoundID = &id
		}
		return it
	}
	return []feed.Item{
		mk("sunset-surf", "maya", "caught the last wave before sunset #surf #goldenhour", "golden-hour", 1240, 4, 37, 2),
		mk("tteokbokki", "leo", "spicy rice cakes from the night market #streetfood", "sizzle", 860, 0, 12, 6),
		mk("friday-dance", "sofia", "friday cover, learn it with me #dance", "night-drive", 3020, 0, 140, 20),
		mk("kickflip-fail", "kai", "kickflip attempt number 47 #skate", "", 410, 0, 3, 30),
	}
}

// Comments includes a reply to a reply so threads get flattened.
func Comments() []comment.Comment {
	item := ID("feed", "sunset-surf")
	mk := func(name, author, parent, text string, likes int64, firstTime bool, minutes int) comment.Comment {
		c := comment.Comment{
			ID:         ID("comment", name),
			FeedItemID: item,
			UserID:     ID("user", author),
			Text:       text,
			Likes:      likes,
			FirstTime:  firstTime,
			Published:  true,
			CreatedAt:  timestamp.From(epoch.Add(-2*time.Hour + time.Duration(minutes)*time.Minute)),
		}
		c.Author.ID = c.UserID
		if parent != "" {
			p := ID("comment", parent)
			c.ParentID = &p
		}
		return c
	}
	return []comment.Comment{
		mk("where-is-this", "leo", "", "where is this beach?? 😍", 24, true, 5),
		mk("big-sur", "maya", "where-is-this", "big sur! go on a weekday", 8, false, 9),
		mk("noted", "leo", "big-sur", "noted, thanks!", 2, false, 14),
		mk("wave-form", "sofia", "", "that paddle out form is clean", 11, true, 20),
	}
}

func Stories() []story.Story {
	now := time.Now().UTC()
	mk := func(name, owner string, hoursAgo int) story.Story {
		created := now.Add(-time.Duration(hoursAgo) * time.Hour)
		st := story.Story{
			ID:        ID("story", name),
			UserID:    ID("user", owner),
			ImageURL:  "https://picsum.photos/seed/" + name + "/720/1280",
			CreatedAt: created,
			ExpiresAt: created.Add(24 * time.Hour),
		}
		st.Author.ID = st.UserID
		return st
	}
	return []story.Story{
		mk("maya-morning", "maya", 5),
		mk("maya-board", "maya", 1),
		mk("leo-market", "leo", 3),
	}
}

func Chats() []Chat {
	a, b := ID("user", "maya"), ID("user", "leo")
	if b < a {
		a, b = b, a
	}
	id := ID("chat", "maya-leo")
	msg := func(name, sender, text string, minutes int) chat.Message {
		return chat.Message{
			ID:        ID("message", name),
			ChatID:    id,
			SenderID:  ID("user", sender),
			Text:      text,
			CreatedAt: epoch.Add(time.Duration(minutes) * time.Minute),
		}
	}
	return []Chat{{
		ID:    id,
		UserA: a,
		UserB: b,
		Messages: []chat.Message{
			msg("hey", "leo", "that sunset clip is unreal", 0),
			msg("thanks", "maya", "haha thank you! you should come next time", 3),
		},
	}}
}
