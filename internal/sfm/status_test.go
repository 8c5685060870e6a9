package sfm

import "testing"

func TestIsMissingProjectPhrases(t *testing.T) {
	for _, text := range []string{
		"Error: No such file or directory",
		"project NOT FOUND",
		"项目不存在",
		"没有这样的文件或目录",
	} {
		if !IsMissingProject(Status{Text: text}) {
			t.Fatalf("expected %q to be treated as missing", text)
		}
	}
	if IsMissingProject(Status{Text: "执行中"}) {
		t.Fatal("running status must not be treated as missing")
	}
}

func TestIsMissingProjectPrefersCode(t *testing.T) {
	if !IsMissingProject(Status{Text: "gone", Code: "project_not_found"}) {
		t.Fatal("expected structured code to mark project missing")
	}
	if IsMissingProject(Status{Text: "file not found in cache, retrying", Code: "ok"}) {
		t.Fatal("structured code should override phrase matching")
	}
}

func TestDerive(t *testing.T) {
	cases := []struct {
		status Status
		want   ProjectStatus
	}{
		{Status{Text: "No such file"}, StatusMissing},
		{Status{Text: "执行中", HasCameraPoses: true}, StatusComplete},
		{Status{Text: "重建完成"}, StatusComplete},
		{Status{Text: "执行中"}, StatusRunning},
		{Status{Text: "Processing frames"}, StatusRunning},
		{Status{Text: "pending"}, StatusQueued},
		{Status{Text: ""}, StatusUnknown},
		{Status{Text: "done"}, StatusComplete},
		{Status{Text: "Reconstruction finished."}, StatusComplete},
		{Status{Text: "running (40% complete)"}, StatusRunning},
		{Status{Text: "processing, not done yet"}, StatusRunning},
		{Status{Text: "reconstruction incomplete"}, StatusUnknown},
		{Status{Text: "not done"}, StatusUnknown},
		{Status{Text: "未完成"}, StatusUnknown},
		{Status{Text: "waiting for worker to complete upload"}, StatusQueued},
	}
	for _, tc := range cases {
		if got := tc.status.Derive(); got != tc.want {
			t.Fatalf("Derive(%+v) = %s, want %s", tc.status, got, tc.want)
		}
	}
}
