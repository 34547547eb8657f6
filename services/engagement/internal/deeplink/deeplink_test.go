package deeplink

import "testing"

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		route     string
		postID    string
		commentID string
		action    string
		want      string
	}{
		{"post only", "posts", "p1", "", "", "/posts/p1"},
		{"with comment", "posts", "p1", "c9", "", "/posts/p1?comment_id=c9"},
		{"with action", "posts", "p1", "", "like", "/posts/p1?action=like"},
		{"both", "events", "e2", "c3", "like", "/events/e2?action=like&comment_id=c3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.route, tt.postID, tt.commentID, tt.action); got != tt.want {
				t.Fatalf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	l, err := Parse("/posts/p1?comment_id=c9&action=like")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.PostID != "p1" || l.CommentID != "c9" || l.Action != ActionLike {
		t.Fatalf("unexpected link: %+v", l)
	}
}

func TestParse_NoQuery(t *testing.T) {
	l, err := Parse("/posts/p1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.PostID != "p1" || l.CommentID != "" || l.Action != "" {
		t.Fatalf("unexpected link: %+v", l)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse("/"); err == nil {
		t.Fatal("expected error for missing post id")
	}
}

func TestRoundTrip(t *testing.T) {
	raw := Build("posts", "p 1", "c1", "")
	l, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse built link %q: %v", raw, err)
	}
	if l.PostID != "p 1" || l.CommentID != "c1" {
		t.Fatalf("round trip mismatch: %+v", l)
	}
}
