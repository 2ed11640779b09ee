// Command mvakit 在同一份信号/本底样本上训练并比较多个二分类算法。
//
//	mvakit run --config run.yaml [--methods BDT,Fisher]
//	mvakit methods
//	mvakit weights --config run.yaml
package main

func main() {
	Execute()
}
