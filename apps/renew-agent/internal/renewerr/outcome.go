package renewerr

// OutcomeSuccess は成功時のラベル
const OutcomeSuccess = "success"

// Outcome は更新セッションの最終結果。生成後は変更しない。
type Outcome struct {
	Err *Error
}

// Success は成功結果を返す
func Success() Outcome {
	return Outcome{}
}

// Failure は失敗結果を返す
func Failure(err *Error) Outcome {
	if err == nil {
		err = New(KindUnknown, nil)
	}
	return Outcome{Err: err}
}

// FailureOf は種別と原因から失敗結果を生成する
func FailureOf(kind Kind, cause error) Outcome {
	return Failure(New(kind, cause))
}

// Succeeded は成功かどうかを返す
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Settled は成功または正常終了扱いの失敗かどうかを返す
func (o Outcome) Settled() bool {
	return o.Err == nil || o.Err.IsSoft()
}

// Label はログ・メトリクス用のラベルを返す
func (o Outcome) Label() string {
	if o.Err == nil {
		return OutcomeSuccess
	}
	return string(o.Err.Kind)
}

// Title は表示用タイトルを返す
func (o Outcome) Title() string {
	if o.Err == nil {
		return "Sweet! You've snagged the latest UPass."
	}
	return o.Err.Title()
}

// AsError は失敗時のみerrorを返す
func (o Outcome) AsError() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}
